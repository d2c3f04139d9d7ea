package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeResult decodes a raw JSON-RPC result into target. It goes through
// an intermediate map and a weakly typed decoder so results from servers
// that encode numbers as strings (or vice versa) still land in typed
// structs. Field matching uses json tags.
func DecodeResult(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("result is empty, cannot decode")
	}
	var intermediate interface{}
	if err := json.Unmarshal(raw, &intermediate); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create result decoder: %w", err)
	}
	if err := decoder.Decode(intermediate); err != nil {
		return fmt.Errorf("failed to decode result into %T: %w", target, err)
	}
	return nil
}
