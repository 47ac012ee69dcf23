package optimizer

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Search method names.
const (
	MethodGrid        = "grid"
	MethodMonteCarlo  = "montecarlo"
	MethodIncremental = "incremental"
)

// Config controls one parameter search.
type Config struct {
	Method       string  `yaml:"method" json:"method" validate:"oneof=grid montecarlo incremental" jsonschema:"title=Method,description=Search algorithm,enum=grid,enum=montecarlo,enum=incremental"`
	Objective    string  `yaml:"objective" json:"objective" validate:"required" jsonschema:"title=Objective,description=Scalar the search ranks candidates by"`
	SampleSize   int     `yaml:"sample_size" json:"sample_size" validate:"gte=1" jsonschema:"title=Sample Size,description=Lattice resolution for grid search or candidates per round otherwise,minimum=1"`
	PoolCapacity int     `yaml:"pool_capacity" json:"pool_capacity" validate:"gte=1" jsonschema:"title=Pool Capacity,description=Number of ranked results to keep,minimum=1"`
	ReduceRatio  float64 `yaml:"reduce_ratio" json:"reduce_ratio" jsonschema:"title=Reduce Ratio,description=Fraction of candidates surviving each incremental round"`
	MinVolume    float64 `yaml:"min_volume" json:"min_volume" jsonschema:"title=Min Volume,description=Incremental search stops once total sub-space volume falls below this"`
	MaxRounds    int     `yaml:"max_rounds" json:"max_rounds" validate:"gte=1" jsonschema:"title=Max Rounds,description=Hard cap on incremental rounds,minimum=1"`
	Workers      int     `yaml:"workers" json:"workers" validate:"gte=0" jsonschema:"title=Workers,description=Parallel evaluators; zero means one per CPU core and one disables parallelism,minimum=0"`
	Seed         int64   `yaml:"seed" json:"seed" jsonschema:"title=Seed,description=Random seed for reproducible sampling"`
	Progress     bool    `yaml:"progress" json:"progress" jsonschema:"title=Progress,description=Render a progress bar while evaluating"`
}

// Validate checks the config for structural errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid search config", err)
	}

	if c.Method == MethodIncremental && (c.ReduceRatio <= 0 || c.ReduceRatio >= 1) {
		return errors.Newf(errors.ErrCodeInvalidReduceRatio,
			"reduce ratio must be in (0, 1), got %v", c.ReduceRatio)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(c)

	schema.Title = "optimizer-config"
	schema.Description = "Configuration schema for the parameter search"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a single-threaded incremental search with sensible
// budgets.
func DefaultConfig() Config {
	return Config{
		Method:       MethodIncremental,
		Objective:    "final-value",
		SampleSize:   500,
		PoolCapacity: 50,
		ReduceRatio:  0.2,
		MinVolume:    1,
		MaxRounds:    10,
		Workers:      1,
		Seed:         42,
	}
}
