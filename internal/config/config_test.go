package config

import "testing"

func TestParseStringMap(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "0xabc=deposit", map[string]string{"0xabc": "deposit"}},
		{
			"multiple with spaces",
			" 0xabc=deposit , 0xdef=withdraw ",
			map[string]string{"0xabc": "deposit", "0xdef": "withdraw"},
		},
		{"malformed pair dropped", "0xabc=deposit,broken", map[string]string{"0xabc": "deposit"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseStringMap(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("size mismatch: %v", got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("key %s mismatch: %v", k, got)
				}
			}
		})
	}
}
