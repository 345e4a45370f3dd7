package alerts

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

// Information is the free-form metadata of an alert. Fields keep the order
// they were set in (or the order of the JSON document they were read from).
type Information struct {
	fields *orderedmap.OrderedMap[string, analysis.Value]
}

func NewInformation() *Information {
	return &Information{fields: orderedmap.New[string, analysis.Value]()}
}

// Set adds or replaces a field. Replacing keeps the original position.
func (i *Information) Set(key string, v analysis.Value) *Information {
	if i.fields == nil {
		i.fields = orderedmap.New[string, analysis.Value]()
	}
	i.fields.Set(key, v)
	return i
}

func (i *Information) Get(key string) (analysis.Value, bool) {
	if i == nil || i.fields == nil {
		return analysis.Value{}, false
	}
	return i.fields.Get(key)
}

func (i *Information) Len() int {
	if i == nil || i.fields == nil {
		return 0
	}
	return i.fields.Len()
}

// Each calls fn for every field in order.
func (i *Information) Each(fn func(key string, v analysis.Value)) {
	if i == nil || i.fields == nil {
		return
	}
	for pair := i.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (i *Information) MarshalJSON() ([]byte, error) {
	if i == nil || i.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(i.fields)
}

func (i *Information) UnmarshalJSON(data []byte) error {
	fields := orderedmap.New[string, analysis.Value]()
	if err := json.Unmarshal(data, fields); err != nil {
		return err
	}
	i.fields = fields
	return nil
}
