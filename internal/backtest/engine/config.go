package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/frankfanslc/qteasy/internal/backtest/engine/cost"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Config controls one simulation run.
type Config struct {
	Cost           *cost.Model                `yaml:"cost" json:"cost" jsonschema:"title=Transaction Costs,description=Transaction cost model applied to every trade"`
	TradeBatchSize float64                    `yaml:"trade_batch_size" json:"trade_batch_size" validate:"gte=0" jsonschema:"title=Trade Batch Size,description=Minimum order quantity; zero allows fractional trades,minimum=0"`
	InflationRate  float64                    `yaml:"inflation_rate" json:"inflation_rate" validate:"gte=0,lte=1" jsonschema:"title=Inflation Rate,description=Annual rate at which idle cash grows between periods,minimum=0,maximum=1"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the simulated period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the simulated period"`
}

// UnmarshalYAML implements custom unmarshaling for Config
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		Cost           *cost.Model `yaml:"cost"`
		TradeBatchSize float64     `yaml:"trade_batch_size"`
		InflationRate  float64     `yaml:"inflation_rate"`
		StartTime      *time.Time  `yaml:"start_time"`
		EndTime        *time.Time  `yaml:"end_time"`
	}

	var config plain
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.Cost = config.Cost
	c.TradeBatchSize = config.TradeBatchSize
	c.InflationRate = config.InflationRate
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks the config for structural errors.
func (c *Config) Validate() error {
	if c.Cost == nil {
		return errors.New(errors.ErrCodeMissingCostModel, "config has no cost model")
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if err := validator.New().Struct(c.Cost); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidCostModel, "invalid cost model", err)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-config"
	schema.Description = "Configuration schema for the backtest engine"
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

// DefaultConfig returns a Config with the default cost model, fractional
// trading and no idle-cash growth.
func DefaultConfig() Config {
	model := cost.Default()

	return Config{
		Cost:           &model,
		TradeBatchSize: 0,
		InflationRate:  0,
		StartTime:      optional.None[time.Time](),
		EndTime:        optional.None[time.Time](),
	}
}
