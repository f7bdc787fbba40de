package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// PeriodQuery binds the "from" & "to" calendar days of a report; both are optional.
type PeriodQuery struct {
	From string `query:"from"`
	To   string `query:"to"`
}

func (pq *PeriodQuery) Bind(ctx echo.Context) (core.Period, error) {
	pq.From = core.CleanString(ctx.QueryParam("from"))
	pq.To = core.CleanString(ctx.QueryParam("to"))

	var from, to time.Time
	var err error
	var flds []core.FieldError
	if pq.From != "" {
		if from, err = core.ParseDay(pq.From); err != nil {
			flds = append(flds, core.FieldError{Field: "from", Error: "must be a date formatted as " + core.DateLayout})
		}
	}
	if pq.To != "" {
		if to, err = core.ParseDay(pq.To); err != nil {
			flds = append(flds, core.FieldError{Field: "to", Error: "must be a date formatted as " + core.DateLayout})
		}
	}
	if flds != nil {
		return core.Period{}, core.NewValidationError(nil, flds...)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return core.Period{}, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must not be before from"})
	}
	return core.NewPeriod(from, to), nil
}
