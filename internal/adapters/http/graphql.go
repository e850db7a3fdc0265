package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/Guymer/gft/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	runConfigType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RunConfig",
		Fields: graphql.Fields{
			"lon":              &graphql.Field{Type: graphql.Float},
			"lat":              &graphql.Field{Type: graphql.Float},
			"speed_knots":      &graphql.Field{Type: graphql.Float},
			"n_ang":            &graphql.Field{Type: graphql.Int},
			"precision_metres": &graphql.Field{Type: graphql.Float},
			"freq_land":        &graphql.Field{Type: graphql.Int},
			"freq_plot":        &graphql.Field{Type: graphql.Int},
			"freq_simp":        &graphql.Field{Type: graphql.Int},
			"simplify_deg":     &graphql.Field{Type: graphql.Float},
			"ne_resolution":    &graphql.Field{Type: graphql.String},
			"conservatism":     &graphql.Field{Type: graphql.Float},
			"avoid_countries":  &graphql.Field{Type: graphql.NewList(graphql.String)},
			"local_only":       &graphql.Field{Type: graphql.Boolean},
			"workers":          &graphql.Field{Type: graphql.Int},
			"duration_hours": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if cfg, ok := p.Source.(domain.RunConfig); ok {
						return cfg.Duration.Hours(), nil
					}
					return nil, nil
				},
			},
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Run",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"state":           &graphql.Field{Type: graphql.String},
			"step":            &graphql.Field{Type: graphql.Int},
			"steps":           &graphql.Field{Type: graphql.Int},
			"distance_metres": &graphql.Field{Type: graphql.Float},
			"error":           &graphql.Field{Type: graphql.String},
			"started_at":      &graphql.Field{Type: graphql.DateTime},
			"updated_at":      &graphql.Field{Type: graphql.DateTime},
			"completed_at":    &graphql.Field{Type: graphql.DateTime},
			"config":          &graphql.Field{Type: runConfigType},
		},
	})

	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Frame",
		Fields: graphql.Fields{
			"run_id":          &graphql.Field{Type: graphql.String},
			"step":            &graphql.Field{Type: graphql.Int},
			"distance_metres": &graphql.Field{Type: graphql.Float},
			"area_km2":        &graphql.Field{Type: graphql.Float},
			"vertices":        &graphql.Field{Type: graphql.Int},
			"clipped":         &graphql.Field{Type: graphql.Boolean},
			"simplified":      &graphql.Field{Type: graphql.Boolean},
			"degraded":        &graphql.Field{Type: graphql.Boolean},
			"emitted_at":      &graphql.Field{Type: graphql.DateTime},
			"elapsed_hours": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch f := p.Source.(type) {
					case domain.Frame:
						return f.ElapsedHours(), nil
					case *domain.Frame:
						return f.ElapsedHours(), nil
					}
					return nil, nil
				},
			},
			"geojson": &graphql.Field{
				Type:        graphql.String,
				Description: "The front polygon as a GeoJSON feature; null when the geometry was not loaded",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var f *domain.Frame
					switch v := p.Source.(type) {
					case domain.Frame:
						f = &v
					case *domain.Frame:
						f = v
					}
					if f == nil || len(f.Region) == 0 {
						return nil, nil
					}
					raw, err := json.Marshal(frameFeature(f))
					if err != nil {
						return nil, err
					}
					return string(raw), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"runs": &graphql.Field{
				Type:        graphql.NewList(runType),
				Description: "List runs, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					runs, _, err := deps.Runs.List(p.Context, limit, offset)
					return runs, err
				},
			},
			"run": &graphql.Field{
				Type:        runType,
				Description: "Get a run by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					run, err := deps.Runs.Get(p.Context, id)
					if err != nil || run == nil {
						return nil, err
					}
					return *run, nil
				},
			},
			"frames": &graphql.Field{
				Type:        graphql.NewList(frameType),
				Description: "List a run's archived frames, geometry omitted",
				Args: graphql.FieldConfigArgument{
					"run_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					frames, _, err := deps.Runs.ListFrames(p.Context, runID, limit, offset)
					return frames, err
				},
			},
			"frame": &graphql.Field{
				Type:        frameType,
				Description: "Get one archived frame with its geometry",
				Args: graphql.FieldConfigArgument{
					"run_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"step":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					step := p.Args["step"].(int)
					frame, err := deps.Runs.GetFrame(p.Context, runID, step)
					if err != nil || frame == nil {
						return nil, err
					}
					return frame, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}

// Ensure domain types implement field resolvers for graphql-go via struct tags
var _ = domain.Run{}
var _ = domain.Frame{}
