// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

const sampleResult = `{"Current Policy number":"P-778","Customer Name":"A. Kumar","Vehicle Number":null,"Sum Insured":500000,"NCB":""}`

func TestExtractionResult_JSONKeepsOrder(t *testing.T) {
	var r ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &r))

	require.Equal(t, 5, r.Len())
	names := make([]string, r.Len())
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Current Policy number", "Customer Name", "Vehicle Number", "Sum Insured", "NCB"}, names)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, sampleResult, string(out))
}

func TestExtractionResult_UnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"array", `["a"]`},
		{"nested object", `{"a":{"b":1}}`},
		{"nested array", `{"a":[1]}`},
		{"truncated", `{"a":"b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r ExtractionResult
			assert.Error(t, json.Unmarshal([]byte(tt.in), &r))
		})
	}
}

func TestExtractionResult_Null(t *testing.T) {
	var r ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.Equal(t, 0, r.Len())

	out, err := json.Marshal(ExtractionResult{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestField_TextAndDisplay(t *testing.T) {
	var r ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &r))

	require.Len(t, r.Fields, 5)

	tests := []struct {
		index       int
		name        string
		wantText    string
		wantDisplay string
	}{
		{0, "Current Policy number", "P-778", "P-778"},
		{2, "Vehicle Number", "", NotFound},
		{3, "Sum Insured", "500000", "500000"},
		{4, "NCB", "", NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := r.Fields[tt.index]
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.wantText, f.Text())
			assert.Equal(t, tt.wantDisplay, f.Display())
		})
	}
}

func TestExtractionResult_RawText(t *testing.T) {
	var r ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &r))

	want := "Current Policy number: P-778\n" +
		"Customer Name: A. Kumar\n" +
		"Vehicle Number: Not Found\n" +
		"Sum Insured: 500000\n" +
		"NCB: Not Found"
	assert.Equal(t, want, r.RawText())
	assert.Equal(t, "", ExtractionResult{}.RawText())
}

func TestExtractionResult_YAMLRoundTrip(t *testing.T) {
	var r ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &r))

	out, err := yaml.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, "Current Policy number: P-778\n"+
		"Customer Name: A. Kumar\n"+
		"Vehicle Number: null\n"+
		"Sum Insured: 500000\n"+
		"NCB: \"\"\n", string(out))

	var back ExtractionResult
	require.NoError(t, yaml.Unmarshal(out, &back))
	js, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, sampleResult, string(js))
}

func TestExtractionResult_YAMLRejectsNested(t *testing.T) {
	var r ExtractionResult
	assert.Error(t, yaml.Unmarshal([]byte("a:\n  b: 1\n"), &r))
	assert.Error(t, yaml.Unmarshal([]byte("- a\n"), &r))
}

func TestUploadResponse_Decode(t *testing.T) {
	in := `{"success":false,"error":"Only PDF files are allowed"}`
	var resp UploadResponse
	require.NoError(t, json.Unmarshal([]byte(in), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Only PDF files are allowed", resp.Error)
	assert.Nil(t, resp.OCRText)
	assert.Nil(t, resp.Analysis)
	assert.Equal(t, 0, resp.Data.Len())
}
