package upstream

import (
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/tidwall/sjson"
)

// Counters is one reading of the dashboard.
// Waiting is always present; the other fields depend on the upstream variant.
type Counters struct {
	Inside        mo.Option[int]
	Total         mo.Option[int]
	Bookings5to7  mo.Option[int]
	Bookings8Plus mo.Option[int]
	Waiting       int
}

// Validate rejects negative readings, which only appear when parsing went wrong.
func (c Counters) Validate() error {
	if c.Waiting < 0 {
		return NewError(KindParseFailed, fmt.Sprintf("negative waiting count %d", c.Waiting), nil)
	}
	for name, opt := range map[string]mo.Option[int]{
		"inside":        c.Inside,
		"total":         c.Total,
		"bookings5to7":  c.Bookings5to7,
		"bookings8plus": c.Bookings8Plus,
	} {
		if v, ok := opt.Get(); ok && v < 0 {
			return NewError(KindParseFailed, fmt.Sprintf("negative %s count %d", name, v), nil)
		}
	}
	return nil
}

// MarshalJSON omits absent optional fields.
func (c Counters) MarshalJSON() ([]byte, error) {
	return c.AppendJSON([]byte("{}"))
}

// AppendJSON sets the counter fields on an existing JSON object.
func (c Counters) AppendJSON(doc []byte) ([]byte, error) {
	var err error
	set := func(path string, opt mo.Option[int]) {
		if v, ok := opt.Get(); ok && err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}

	set("inside", c.Inside)
	if err == nil {
		doc, err = sjson.SetBytes(doc, "waiting", c.Waiting)
	}
	set("total", c.Total)
	set("bookings5to7", c.Bookings5to7)
	set("bookings8plus", c.Bookings8Plus)

	return doc, err
}

// Query identifies what a fetch should return.
type Query struct {
	Date time.Time
	Key  string
}

// DateString returns the query date as YYYY-MM-DD.
func (q Query) DateString() string {
	return q.Date.Format(time.DateOnly)
}
