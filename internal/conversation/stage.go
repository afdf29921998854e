package conversation

// Stage is the position of one principal inside the draft state machine.
// Stages accept only their own inputs; anything else re-prompts without a
// transition.
type Stage int

const (
	StageStart Stage = iota
	StageWaitingPhone
	StageWaitingCode
	StageWaitingSecondFactor
	StageAuthorized
	StageChoosingGroupType
	StageChoosingGroups
	StageEnteringTitle
	StageWaitingMedia
	StageEnteringText
	StageChoosingInterval
	StageWaitingCustomInterval
	StageChoosingTimes
	StageConfirming
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageWaitingPhone:
		return "waiting_phone"
	case StageWaitingCode:
		return "waiting_code"
	case StageWaitingSecondFactor:
		return "waiting_second_factor"
	case StageAuthorized:
		return "authorized"
	case StageChoosingGroupType:
		return "choosing_group_type"
	case StageChoosingGroups:
		return "choosing_groups"
	case StageEnteringTitle:
		return "entering_mailing_title"
	case StageWaitingMedia:
		return "waiting_media"
	case StageEnteringText:
		return "entering_text"
	case StageChoosingInterval:
		return "choosing_interval"
	case StageWaitingCustomInterval:
		return "waiting_custom_interval"
	case StageChoosingTimes:
		return "choosing_times"
	case StageConfirming:
		return "confirming"
	default:
		return "unknown"
	}
}
