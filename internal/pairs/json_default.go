//go:build !sonic

package pairs

import (
	"github.com/goccy/go-json"
)

var jsonMarshalIndent = json.MarshalIndent
var jsonUnmarshal = json.Unmarshal
