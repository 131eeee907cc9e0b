package lookup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

// Table is one dataset table searched for a query type.
type Table struct {
	Schema string `yaml:"schema"`
	Name   string `yaml:"table"`
	// Column holds the value matched against the query.
	Column string `yaml:"column"`
}

// Sources lists the tables per query type. A type with no tables falls back
// to discovery: every table in Schema that has the default column.
type Sources struct {
	Schema string  `yaml:"schema"`
	Phone  []Table `yaml:"phone"`
	IDCard []Table `yaml:"id_card"`
	Limit  int     `yaml:"limit"`
}

const (
	defaultSchema = "public"
	defaultLimit  = 50
)

// DefaultColumn is the column matched when a table does not name one.
func DefaultColumn(t domain.QueryType) string {
	if t == domain.QueryIDCard {
		return "cardno"
	}
	return "phone"
}

func (s Sources) tables(t domain.QueryType) []Table {
	if t == domain.QueryIDCard {
		return s.IDCard
	}
	return s.Phone
}

func (s *Sources) normalize() {
	if s.Schema == "" {
		s.Schema = defaultSchema
	}
	if s.Limit <= 0 {
		s.Limit = defaultLimit
	}
	for _, list := range [][]Table{s.Phone, s.IDCard} {
		for i := range list {
			if list[i].Schema == "" {
				list[i].Schema = s.Schema
			}
		}
	}
	for i := range s.Phone {
		if s.Phone[i].Column == "" {
			s.Phone[i].Column = DefaultColumn(domain.QueryPhone)
		}
	}
	for i := range s.IDCard {
		if s.IDCard[i].Column == "" {
			s.IDCard[i].Column = DefaultColumn(domain.QueryIDCard)
		}
	}
}

// LoadSources reads a YAML sources file. An empty path yields discovery in
// the public schema.
func LoadSources(path string) (Sources, error) {
	var s Sources
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Sources{}, fmt.Errorf("read sources: %w", err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Sources{}, fmt.Errorf("parse sources %s: %w", path, err)
		}
		for _, list := range [][]Table{s.Phone, s.IDCard} {
			for _, t := range list {
				if t.Name == "" {
					return Sources{}, fmt.Errorf("parse sources %s: table name is required", path)
				}
			}
		}
	}
	s.normalize()
	return s, nil
}
