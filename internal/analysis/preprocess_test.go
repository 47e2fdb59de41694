package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

func TestPreprocessCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "trailing whitespace stripped per line",
			in:   "let x = 1;   \nlet y = 2;\t",
			want: "let x = 1;\nlet y = 2;",
		},
		{
			name: "leading and trailing blank lines removed",
			in:   "\n\n\nlet x = 1;\n\n\n",
			want: "let x = 1;",
		},
		{
			name: "interior blank lines preserved",
			in:   "a = 1\n\nb = 2",
			want: "a = 1\n\nb = 2",
		},
		{
			name: "empty input stays empty",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only collapses to empty",
			in:   "  \n\t\n  ",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, analysis.PreprocessCode(tc.in))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	// A shebang is the strongest content signal the detector recognizes.
	pySource := "#!/usr/bin/env python\nimport sys\nprint(sys.argv)\n"

	lang := analysis.DetectLanguage(pySource)
	assert.Equal(t, "python", lang)
}

func TestDetectLanguage_Unrecognizable(t *testing.T) {
	t.Parallel()

	// Detection on noise must not panic; an empty result is acceptable and
	// callers fall back to a configured default.
	_ = analysis.DetectLanguage("zzz qqq")
}

func TestKinds(t *testing.T) {
	t.Parallel()

	kinds := analysis.Kinds()

	assert.Equal(t, []analysis.Kind{analysis.KindLint, analysis.KindRefactor, analysis.KindTestgen}, kinds)
}
