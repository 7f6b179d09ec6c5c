package main

import "testing"

func TestExtReturnsLastDotSuffix(t *testing.T) {
	cases := map[string]string{
		"foo.rtmc":        ".rtmc",
		"dir/sub/bar.vmb": ".vmb",
		"noext":           "",
		"a.b.c":           ".c",
	}
	for in, want := range cases {
		if got := ext(in); got != want {
			t.Errorf("ext(%q) = %q, want %q", in, got, want)
		}
	}
}
