package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tasksync/internal/ir"
)

func TestSelect_ImplementsQuery(t *testing.T) {
	var q Query = Select{From: "raw_stock_action", Limit: 10}

	switch q.(type) {
	case Select:
		// Expected
	default:
		t.Fatal("unexpected type")
	}
}

func TestPredicates_ImplementPredicate(t *testing.T) {
	preds := []Predicate{
		Equals{Field: "a", Value: ir.IRInt(1)},
		Greater{Field: "a", Value: ir.IRInt(1)},
		Less{Field: "a", Value: ir.IRInt(1)},
		And{},
		Or{},
	}
	assert.Len(t, preds, 5)
}

func TestFilterEquals(t *testing.T) {
	assert.Nil(t, FilterEquals(nil))

	single := FilterEquals(ir.IRObject{"canceled": ir.IRBool(false)})
	assert.Equal(t, Equals{Field: "canceled", Value: ir.IRBool(false)}, single)

	multi := FilterEquals(ir.IRObject{"z": ir.IRInt(1), "a": ir.IRString("x")})
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "a", Value: ir.IRString("x")},
		Equals{Field: "z", Value: ir.IRInt(1)},
	}}, multi, "keys are emitted in canonical order")
}

func TestConjoin(t *testing.T) {
	a := Equals{Field: "a", Value: ir.IRInt(1)}
	b := Greater{Field: "b", Value: ir.IRInt(2)}

	assert.Nil(t, Conjoin(nil, nil))
	assert.Equal(t, a, Conjoin(nil, a))
	assert.Equal(t, And{Predicates: []Predicate{a, b}}, Conjoin(a, nil, b))
}
