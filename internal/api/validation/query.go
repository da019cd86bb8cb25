package validation

import (
	"fmt"
	"github.com/skybi/inbox/internal/api/schema"
	"net/http"
	"strconv"
)

var (
	errQueryParameterInvalidType = func(name, value, expectedType string) *schema.Error {
		return &schema.Error{
			Type:    "validation.query.parameter.invalidType",
			Message: fmt.Sprintf("The query parameter '%s' ('%s') could not be assigned to the required type (%s).", name, value, expectedType),
			Details: map[string]interface{}{
				"parameter":     name,
				"value":         value,
				"expected_type": expectedType,
			},
		}
	}
	errQueryParameterNumberOutOfRange = func(name string, value, min, max int) *schema.Error {
		comparison := ""
		if value < min {
			comparison = fmt.Sprintf("%d [given] < %d [min]", value, min)
		} else if value > max {
			comparison = fmt.Sprintf("%d [given] > %d [max]", value, max)
		}

		return &schema.Error{
			Type:    "validation.query.parameter.number.outOfRange",
			Message: fmt.Sprintf("The query parameter '%s' is out of the required range (%s).", name, comparison),
			Details: map[string]interface{}{
				"parameter": name,
				"value":     value,
				"min":       min,
				"max":       max,
			},
		}
	}
)

// IntParam describes an optional integer query parameter
type IntParam struct {
	Name string
	Min  int
	Max  int
}

// QueryInt extracts and validates an integer value out of the query parameters of the given request.
// An absent parameter yields 0 without a range check.
func QueryInt(request *http.Request, param IntParam) (int, *schema.Error) {
	value := request.URL.Query().Get(param.Name)
	if value == "" {
		return 0, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errQueryParameterInvalidType(param.Name, value, "number")
	}
	if parsed < param.Min || parsed > param.Max {
		return 0, errQueryParameterNumberOutOfRange(param.Name, parsed, param.Min, param.Max)
	}
	return parsed, nil
}

// QueryInts validates several integer query parameters at once and collects every validation error
func QueryInts(request *http.Request, params ...IntParam) (map[string]int, []*schema.Error) {
	values := make(map[string]int, len(params))
	var errs []*schema.Error
	for _, param := range params {
		value, err := QueryInt(request, param)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[param.Name] = value
	}
	return values, errs
}
