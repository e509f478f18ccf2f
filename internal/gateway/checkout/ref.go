package checkout

import (
	"encoding/json"
	"fmt"
)

// Ref is an identifier clients may send either as a JSON string or as a
// number. Numbers keep their literal text.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*r = Ref(n.String())
	return nil
}
