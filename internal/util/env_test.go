package util

import "testing"

func TestBoolEnv(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, c := range cases {
		t.Setenv("BAZAARBOT_TEST_BOOL", c.val)
		if got := BoolEnv("BAZAARBOT_TEST_BOOL", c.def); got != c.want {
			t.Errorf("BoolEnv(%q, %v) = %v, want %v", c.val, c.def, got, c.want)
		}
	}
}

func TestBoolEnvUnset(t *testing.T) {
	if !BoolEnv("BAZAARBOT_TEST_BOOL_UNSET", true) {
		t.Error("unset variable should return the default")
	}
	if BoolEnv("BAZAARBOT_TEST_BOOL_UNSET", false) {
		t.Error("unset variable should return the default")
	}
}
