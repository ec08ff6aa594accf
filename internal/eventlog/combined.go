package eventlog

import "errors"

// CombinedEventLog fans every entry out to several logs, so the journal and
// the terminal debug stream see the same lifecycle.
type CombinedEventLog struct {
	logs []EventLog
}

var _ EventLog = (*CombinedEventLog)(nil)

// NewCombinedEventLog creates an EventLog writing to each of logs in order.
// Nil entries are skipped.
func NewCombinedEventLog(logs ...EventLog) *CombinedEventLog {
	c := &CombinedEventLog{}
	for _, l := range logs {
		if l != nil {
			c.logs = append(c.logs, l)
		}
	}
	return c
}

// Write sends the entry to every log. A failing log does not stop the others.
func (c *CombinedEventLog) Write(message string, fields map[string]string) error {
	var errs []error
	for _, l := range c.logs {
		if err := l.Write(message, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every log and returns the joined errors.
func (c *CombinedEventLog) Close() error {
	var errs []error
	for _, l := range c.logs {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
