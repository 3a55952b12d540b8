package artifact

import "fmt"

// Kind names the format the worker produced its output in.
type Kind string

const (
	KindInlineStream    Kind = "inline-stream"
	KindDelimitedFile   Kind = "delimited-file"
	KindSpreadsheetFile Kind = "spreadsheet-file"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInlineStream, KindDelimitedFile, KindSpreadsheetFile:
		return k, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", s)
	}
}

// FileName returns the deterministic artifact name for file based kinds and
// "" for inline-stream.
func FileName(profile string, k Kind) string {
	switch k {
	case KindDelimitedFile:
		return profile + "_instagram_posts.csv"
	case KindSpreadsheetFile:
		return profile + "_instagram_posts.xlsx"
	default:
		return ""
	}
}
