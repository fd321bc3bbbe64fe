package classification

import "strings"

// Classification tells the engine how an order line is fulfilled.
type Classification struct {
	Name string
}

func (c Classification) Code() string {
	return c.Name
}

func (c Classification) Label() string {
	if len(c.Name) == 0 {
		return ""
	}
	return strings.ToUpper(c.Name[:1]) + c.Name[1:]
}

type Enum struct {
	Stockable Classification
	Batchable Classification
	Custom    Classification
}

var Classifications = Enum{
	Stockable: Classification{Name: "stockable"},
	Batchable: Classification{Name: "batchable"},
	Custom:    Classification{Name: "custom"},
}

var All = []Classification{
	Classifications.Stockable,
	Classifications.Batchable,
	Classifications.Custom,
}

// ByName returns the classification for a given name, or nil if not found
func ByName(name string) *Classification {
	for _, c := range All {
		if c.Name == name {
			return &c
		}
	}
	return nil
}
