package mergerequest

import "time"

const (
	offsetLayout = "2006-01-02T15:04:05Z07:00"
	naiveLayout  = "2006-01-02T15:04:05"
	offsetWidth  = len("+00:00")

	// DisplayLayout is the "DD Mon HH:MM" form used in the report.
	DisplayLayout = "02 Jan 15:04"
)

// ConvertTime turns a GitLab timestamp such as 2022-12-14T20:00:00.000+01:00
// into the short form used in the report. The wall clock of the original
// offset is kept; no conversion to local time happens.
func ConvertTime(raw string) (string, error) {
	t, err := time.Parse(offsetLayout, raw)
	if err != nil {
		if len(raw) <= offsetWidth {
			return "", &TimestampParseError{Raw: raw}
		}
		t, err = time.Parse(naiveLayout, raw[:len(raw)-offsetWidth])
		if err != nil {
			return "", &TimestampParseError{Raw: raw}
		}
	}
	return t.Format(DisplayLayout), nil
}
