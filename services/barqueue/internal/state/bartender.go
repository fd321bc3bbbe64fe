package state

import "time"

type Bartender struct {
	ID             string     `json:"id"`
	Active         bool       `json:"active"`
	CurrentOrderID string     `json:"current_order_id,omitempty"`
	Station        string     `json:"station,omitempty"`
	Skills         []string   `json:"skills,omitempty"`
	BreakUntil     *time.Time `json:"break_until,omitempty"`
}

// OnBreak reports whether the bartender is inside a break window at now.
func (b *Bartender) OnBreak(now time.Time) bool {
	return b.BreakUntil != nil && b.BreakUntil.After(now)
}

// HasSkill reports whether the bartender may prepare the family. An empty
// skill set means no restriction.
func (b *Bartender) HasSkill(family string) bool {
	if len(b.Skills) == 0 {
		return true
	}
	for _, s := range b.Skills {
		if s == family {
			return true
		}
	}
	return false
}

// Field is a partial-update slot. The zero value leaves the target unchanged;
// Set assigns a value and Clear resets it to its zero value.
type Field[T any] struct {
	op    fieldOp
	value T
}

type fieldOp uint8

const (
	fieldKeep fieldOp = iota
	fieldSet
	fieldClear
)

func Set[T any](v T) Field[T] {
	return Field[T]{op: fieldSet, value: v}
}

func Clear[T any]() Field[T] {
	return Field[T]{op: fieldClear}
}

func (f Field[T]) apply(dst *T) {
	switch f.op {
	case fieldSet:
		*dst = f.value
	case fieldClear:
		var zero T
		*dst = zero
	}
}

// BartenderUpdate is a partial update; fields left at their zero value are untouched.
type BartenderUpdate struct {
	Active         Field[bool]
	CurrentOrderID Field[string]
	Station        Field[string]
	Skills         Field[[]string]
	BreakUntil     Field[*time.Time]
}
