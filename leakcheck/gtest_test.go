package leakcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTestList(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    []TestSuite
		wantErr bool
	}{
		{
			name: "plain listing",
			out: "SignalRegistry.\n" +
				"  RegisterSignal\n" +
				"  UnregisterSignal\n" +
				"DataReader.\n" +
				"  ReadSample\n",
			want: []TestSuite{
				{Name: "SignalRegistry", Cases: []string{"RegisterSignal", "UnregisterSignal"}},
				{Name: "DataReader", Cases: []string{"ReadSample"}},
			},
		},
		{
			name: "gtest_main banner and parameter comments",
			out: "Running main() from gtest_main.cc\n" +
				"Sizes/Transmission.  # TypeParam = int\n" +
				"  Roundtrip/0  # GetParam() = 1024\n" +
				"  Roundtrip/1  # GetParam() = 4096\r\n",
			want: []TestSuite{
				{Name: "Sizes/Transmission", Cases: []string{"Roundtrip/0", "Roundtrip/1"}},
			},
		},
		{
			name:    "empty line closes the suite",
			out:     "Timing.\n  Tick\n\n  Orphan\n",
			wantErr: true,
		},
		{
			name:    "case before any suite",
			out:     "  Orphan\n",
			wantErr: true,
		},
		{
			name: "nothing listed",
			out:  "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTestList(tt.out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
