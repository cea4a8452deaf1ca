package posture

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{100, StatusGood},
		{81, StatusGood},
		{80.0001, StatusGood},
		{80, StatusNeedsImprovement},
		{51, StatusNeedsImprovement},
		{50.0001, StatusNeedsImprovement},
		{50, StatusPoor},
		{0, StatusPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score=%v", tt.score)
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"s": StatusNeedsImprovement})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"needsImprovement"}`, string(data))

	var decoded map[string]Status
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StatusNeedsImprovement, decoded["s"])

	var bad Status
	assert.Error(t, bad.UnmarshalText([]byte("slouching")))
	_, err = Status(7).MarshalText()
	assert.Error(t, err)
}

func TestStatus_Text(t *testing.T) {
	assert.Equal(t, "Poor Posture", StatusPoor.Label())
	assert.Equal(t, "Your posture looks great! Keep it up.", StatusGood.Description())
	assert.Equal(t, "status(9)", Status(9).String())
}
