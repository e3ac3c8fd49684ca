package models

// Schema of routes.txt
type RouteSchema struct{}

func (RouteSchema) Name() string       { return "routes.txt" }
func (RouteSchema) PrimaryKey() string { return "route_id" }
func (RouteSchema) Columns() []string {
	return []string{"route_id", "route_type", "route_short_name", "route_long_name"}
}
