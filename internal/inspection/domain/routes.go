package domain

import "strings"

var routeLines = []string{
	"W3ELL0001 - ETL3-LUB- 6 WEEK ENTRY LUBRICATION PM",
	"W3ELL0002 - ETL3-LUB- 6 WEEK EXIT LUBRICATION PM",
	"W3ELL0003 - 3ETL-LUB- 6 WEEK OIL MIST/GEARBOX CHECKS CLEANER / PICKLE",
	"W3ELL0037 - ETL3-LUB- PROCESS LUBRICATION TECHNICAL INFO",
	"W3ELL0038 - ETL3-LUB- ENTRY SECTION LUBRICATION TECHNICAL INFO",
	"W3ELL0039 - ETL3-LUB- EXIT SECTION LUBRICATION TECHNICAL INFO",
}

var allowedRouteCodes = map[string]struct{}{
	"W3ELL0037": {},
	"W3ELL0038": {},
	"W3ELL0039": {},
}

// Routes lists every known route with its gate flag.
func Routes() []Route {
	out := make([]Route, 0, len(routeLines))
	for _, line := range routeLines {
		code, desc, _ := strings.Cut(line, " - ")
		_, allowed := allowedRouteCodes[code]
		out = append(out, Route{Code: code, Description: desc, Line: line, Allowed: allowed})
	}
	return out
}

// RouteCode is the text before the first " - ", or the whole value.
func RouteCode(value string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(value), " - ")
	return strings.TrimSpace(code)
}

// ResolveRoute expands a bare code to its full route line when known.
func ResolveRoute(value string) string {
	code := RouteCode(value)
	for _, line := range routeLines {
		if strings.HasPrefix(line, code+" - ") {
			return line
		}
	}
	return strings.TrimSpace(value)
}

// RouteAllowed reports whether the route unlocks the checklist.
func RouteAllowed(value string) bool {
	_, ok := allowedRouteCodes[RouteCode(value)]
	return ok
}
