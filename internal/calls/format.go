package calls

import (
	"fmt"

	"calllog_viewer/internal/mango"
)

// Icon references, relative to the dashboard's asset root.
const (
	IconOutgoing = "call-outgoing.svg"
	IconNoAnswer = "call-noanswer.svg"
	IconIncoming = "call-incoming.svg"
	IconMissing  = "call-missing.svg"
)

// FormatDuration renders seconds as MM:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func CallIcon(dir mango.Direction, status string) string {
	connected := status == mango.StatusConnected
	if dir == mango.Outbound {
		if connected {
			return IconOutgoing
		}
		return IconNoAnswer
	}
	if connected {
		return IconIncoming
	}
	return IconMissing
}

func CallTitle(dir mango.Direction, status string) string {
	connected := status == mango.StatusConnected
	if dir == mango.Outbound {
		if connected {
			return "Исходящий"
		}
		return "Недозвон"
	}
	if connected {
		return "Входящий"
	}
	return "Пропущенный"
}

func CallTypeTitle(t mango.CallType) string {
	switch t {
	case mango.CallTypeOutbound:
		return "Исходящие"
	case mango.CallTypeInbound:
		return "Входящие"
	}
	return "Все типы"
}
