package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_UnmarshalJSON(t *testing.T) {
	var body struct {
		Name     Optional[string]   `json:"name"`
		Username Optional[string]   `json:"username"`
		Notes    Optional[string]   `json:"notes"`
		Tags     Optional[[]string] `json:"tags"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"name":"GitHub","username":null,"tags":["a"]}`), &body))

	assert.True(t, body.Name.Set)
	assert.Equal(t, "GitHub", *body.Name.Value)

	assert.True(t, body.Username.Set, "explicit null is set")
	assert.Nil(t, body.Username.Value)

	assert.False(t, body.Notes.Set, "absent field is not set")

	assert.Equal(t, []string{"a"}, *body.Tags.Value)
}

func TestOptional_TypeMismatch(t *testing.T) {
	var o Optional[string]
	assert.Error(t, json.Unmarshal([]byte(`42`), &o))
}

func TestOptionalConstructors(t *testing.T) {
	s := Some("x")
	assert.True(t, s.Set)
	assert.Equal(t, "x", *s.Value)

	n := Null[string]()
	assert.True(t, n.Set)
	assert.Nil(t, n.Value)
}
