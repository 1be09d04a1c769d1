package extract_test

import (
	"net/http"
	"testing"

	"github.com/hostscope/hostscope/pkg/extract"

	mapset "github.com/deckarep/golang-set/v2"
)

func TestFromString(t *testing.T) {
	testCases := []struct {
		body     string
		expected []string
	}{
		{
			`<a href="https://hao.360.com/" target="_blank">a.360.com</a><a href="https://yule.360.com/">`,
			[]string{"hao.360.com", "a.360.com", "yule.360.com"},
		},
		{
			`object-src 'none'; script-src 'self' 'unsafe-inline' wappass.baidu.com:*`,
			[]string{"wappass.baidu.com"},
		},
	}
	e := extract.New()
	for _, tc := range testCases {
		got := e.FromString(tc.body)
		gotSet := mapset.NewSet(got...)
		expectedSet := mapset.NewSet(tc.expected...)
		if !gotSet.Equal(expectedSet) {
			t.Errorf("FromString(%q) = %v, expected %v", tc.body, got, tc.expected)
		}
	}
}

func TestFromHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Content-Security-Policy", "default-src 'self' static.example.com")
	headers.Set("Location", "https://login.example.com/session")
	headers.Set("X-Unrelated", "ignored.example.net")

	e := extract.New()
	got := mapset.NewSet(e.FromHeaders(headers)...)
	expected := mapset.NewSet("static.example.com", "login.example.com")
	if !got.Equal(expected) {
		t.Errorf("FromHeaders = %v, expected %v", got, expected)
	}
}

func TestFilterBySuffix(t *testing.T) {
	hosts := []string{
		"www.tsinghua.edu.cn",
		"join-tsinghua.edu.cn",
		"www.join-tsinghua.edu.cn",
		"www.baidu.com",
	}
	got := extract.FilterBySuffix(hosts, "tsinghua.edu.cn")
	gotSet := mapset.NewSet(got...)
	expectedSet := mapset.NewSet("www.tsinghua.edu.cn")
	if !gotSet.Equal(expectedSet) {
		t.Errorf("FilterBySuffix = %v, expected %v", got, expectedSet)
	}

	if got := extract.FilterBySuffix(hosts, ""); got != nil {
		t.Errorf("empty suffix should match nothing, got %v", got)
	}
}
