package textutil

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		input  string
		expect string
	}{
		{"  Вода  питьевая\t19л ", "вода питьевая 19л"},
		{"Ёмкость\nдля воды", "емкость для воды"},
		{"", ""},
	}
	for _, test := range cases {
		got := NormalizeName(test.input)
		if got != test.expect {
			t.Fatalf("NormalizeName(%q) = %q, want %q", test.input, got, test.expect)
		}
	}
}
