package parse

import (
	"reflect"
	"testing"
)

func TestParams(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", args: nil, want: map[string]string{}},
		{name: "pairs", args: []string{"role=admin", "limit=5"}, want: map[string]string{"role": "admin", "limit": "5"}},
		{name: "value with equals", args: []string{"q=a=b"}, want: map[string]string{"q": "a=b"}},
		{name: "empty value", args: []string{"q="}, want: map[string]string{"q": ""}},
		{name: "later wins", args: []string{"a=1", "a=2"}, want: map[string]string{"a": "2"}},
		{name: "missing equals", args: []string{"role"}, wantErr: true},
		{name: "missing key", args: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Params(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Params() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Params() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitTrim(t *testing.T) {
	got := SplitTrim(" users, orders ,,", ",")
	want := []string{"users", "orders"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitTrim() = %v, want %v", got, want)
	}
	if SplitTrim("", ",") != nil {
		t.Error("SplitTrim of empty string should be nil")
	}
}
