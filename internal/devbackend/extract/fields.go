// Package extract turns free-text interaction notes into structured fields.
package extract

// Fields holds one interaction as extracted. A nil field was not found in the text.
type Fields struct {
	HCPName            *string `json:"hcp_name"`
	InteractionType    *string `json:"interaction_type"`
	Sentiment          *string `json:"sentiment"`
	TopicsDiscussed    *string `json:"topics_discussed"`
	Outcomes           *string `json:"outcomes"`
	FollowUpActions    *string `json:"follow_up_actions"`
	MaterialsShared    *string `json:"materials_shared"`
	SamplesDistributed *string `json:"samples_distributed"`
}

// FieldNames lists the backend field names in form order.
var FieldNames = []string{
	"hcp_name",
	"interaction_type",
	"sentiment",
	"topics_discussed",
	"outcomes",
	"follow_up_actions",
	"materials_shared",
	"samples_distributed",
}

func (f *Fields) ptr(name string) **string {
	switch name {
	case "hcp_name":
		return &f.HCPName
	case "interaction_type":
		return &f.InteractionType
	case "sentiment":
		return &f.Sentiment
	case "topics_discussed":
		return &f.TopicsDiscussed
	case "outcomes":
		return &f.Outcomes
	case "follow_up_actions":
		return &f.FollowUpActions
	case "materials_shared":
		return &f.MaterialsShared
	case "samples_distributed":
		return &f.SamplesDistributed
	}
	return nil
}

// Get returns the named field; ok is false for unknown names.
func (f *Fields) Get(name string) (*string, bool) {
	p := f.ptr(name)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Set assigns the named field and reports whether the name is known.
func (f *Fields) Set(name, value string) bool {
	p := f.ptr(name)
	if p == nil {
		return false
	}
	v := value
	*p = &v
	return true
}

// Overlay copies every non-nil field of src onto f.
func (f *Fields) Overlay(src Fields) {
	for _, name := range FieldNames {
		if v, _ := src.Get(name); v != nil {
			*f.ptr(name) = v
		}
	}
}

// Found counts the non-nil fields.
func (f *Fields) Found() int {
	n := 0
	for _, name := range FieldNames {
		if v, _ := f.Get(name); v != nil {
			n++
		}
	}
	return n
}
