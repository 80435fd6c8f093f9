// components/stats/stats.go
//
// Stats component – GET /stats/cities?minAge=N groups users older than N
// by city, with the head count and average age per city, largest city
// first.  Backends that can aggregate server-side (MongoDB) do so; the rest
// group in process.

package stats

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/validation"
)

// DefaultMinAge applies when ?minAge is absent.
const DefaultMinAge = 20

var _ component.Component = (*Component)(nil)

// Component mounts /stats.
type Component struct{}

func (c *Component) Name() string { return "stats" }

func init() { component.Register(&Component{}) }

// Mount registers the aggregation route.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	if env.Store == nil {
		return errors.New("stats: store is required")
	}
	rules := validation.Rules{
		validation.Query("minAge").Optional().IsInt(0, 200, "minAge must be an integer between 0 and 200"),
	}
	r.Register(http.MethodGet, "/stats/cities",
		append(validation.Gate(rules), pipeline.HandleAsync("stats-cities", cities(env.Store)))...)
	return nil
}

// Reply is the body of GET /stats/cities.
type Reply struct {
	MinAge int           `json:"minAge"`
	Data   []store.Group `json:"data"`
}

func cities(s store.Store) func(context.Context, *pipeline.Request) (pipeline.Response, error) {
	return func(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
		minAge := DefaultMinAge
		if raw := req.Query.Get("minAge"); raw != "" {
			minAge, _ = strconv.Atoi(raw)
		}
		groups, err := store.GroupBy(ctx, s, "users", store.GroupSpec{
			MatchField: "age",
			MatchAbove: float64(minAge),
			GroupField: "city",
			AvgField:   "age",
		})
		if err != nil {
			return pipeline.Response{}, pipeline.Internal(err)
		}
		return pipeline.JSON(http.StatusOK, Reply{MinAge: minAge, Data: groups}), nil
	}
}
