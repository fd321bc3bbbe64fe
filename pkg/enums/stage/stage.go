package stage

import (
	"strings"
)

type Stage struct {
	Name     string
	Terminal bool
}

func (s Stage) Code() string {
	return s.Name
}

func (s Stage) Label() string {
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Created    Stage
	Paid       Stage
	QueuedPrep Stage
	InPrep     Stage
	Ready      Stage
	Delivered  Stage
	Cancelled  Stage
	Abandoned  Stage
}

var Stages = Enum{
	Created:    Stage{Name: "created"},
	Paid:       Stage{Name: "paid"},
	QueuedPrep: Stage{Name: "queued_prep"},
	InPrep:     Stage{Name: "in_prep"},
	Ready:      Stage{Name: "ready"},
	Delivered:  Stage{Name: "delivered", Terminal: true},
	Cancelled:  Stage{Name: "cancelled", Terminal: true},
	Abandoned:  Stage{Name: "abandoned", Terminal: true},
}

var All = []Stage{
	Stages.Created,
	Stages.Paid,
	Stages.QueuedPrep,
	Stages.InPrep,
	Stages.Ready,
	Stages.Delivered,
	Stages.Cancelled,
	Stages.Abandoned,
}

// ByName returns the stage for a given code, or nil if not found.
func ByName(name string) *Stage {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// IsTerminal reports whether an order in this stage leaves the live set.
func IsTerminal(name string) bool {
	s := ByName(name)
	return s != nil && s.Terminal
}

// InPreparation reports whether work on the order has started.
func InPreparation(name string) bool {
	return name == Stages.InPrep.Name || name == Stages.Ready.Name
}
