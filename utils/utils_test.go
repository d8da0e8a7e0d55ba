package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStringListAcceptsEveryShape(t *testing.T) {
	cases := map[string][]string{
		`["a", " b ", ""]`:     {"a", "b"},
		`[1, 2]`:               {"1", "2"},
		`"[\"x\",\"y\"]"`:      {"x", "y"},
		`"anxiety, grief ,"`:   {"anxiety", "grief"},
		`"single"`:             {"single"},
		`42`:                   {"42"},
	}
	for in, want := range cases {
		var l StringList
		require.NoError(t, json.Unmarshal([]byte(in), &l), in)
		assert.Equal(t, want, []string(l), in)
	}

	var empty StringList
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.Nil(t, empty)
	assert.JSONEq(t, `[]`, string(empty.JSON()))
}

func TestStringListInsideStruct(t *testing.T) {
	var dto struct {
		IDs StringList `json:"ids"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ids":"[\"ev1\",\"ev2\"]"}`), &dto))
	assert.True(t, dto.IDs.Contains("ev2"))
	assert.False(t, dto.IDs.Contains("ev3"))

	err := json.Unmarshal([]byte(`{"ids":[{"a":1}]}`), &dto)
	assert.Error(t, err)
}

func TestParseStringList(t *testing.T) {
	l, err := ParseStringList(nil)
	require.NoError(t, err)
	assert.Empty(t, l)

	l, err = ParseStringList([]byte(`["a"]`))
	require.NoError(t, err)
	assert.Equal(t, StringList{"a"}, l)
}

func TestFoldAndSlugify(t *testing.T) {
	assert.Equal(t, "sesion", Fold("Sesión"))
	assert.Equal(t, "sesion", Fold("SESIÓN"))
	assert.Equal(t, []string{"ana", "garcia", "lopez"}, Words("Ana García-López"))
	assert.Equal(t, "terapia-de-pareja-2024", Slugify("  Terapia de Pareja (2024)! "))
}

func TestMonthAndQuarterRange(t *testing.T) {
	from, to, err := MonthRange(2024, 12, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = MonthRange(2024, 13, time.UTC)
	assert.Error(t, err)

	from, to, err = QuarterRange(2024, 2, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.April, from.Month())
	assert.Equal(t, time.July, to.Month())

	assert.Equal(t, "2024-03", Period(2024, 3))
}

func TestRound2AndPercent(t *testing.T) {
	assert.Equal(t, 10.13, Round2(10.125000001))
	assert.Equal(t, 22.0, Percent(55, 40))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, StringList{"e1", "e2"}, SplitList(" e1, e2 ,"))
	assert.Equal(t, StringList{"e1", "7"}, SplitList(`["e1", 7]`))
	assert.Empty(t, SplitList(""))
}

type patchDTO struct {
	Name      *string     `json:"name"`
	Price     *float64    `json:"price"`
	Tags      *StringList `json:"tags"`
	Skipped   *string     `json:"-"`
	Untouched *int        `json:"untouched"`
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	name := "  Ansiedad "
	price := 55.556
	tags := StringList{"a", "b"}
	skipped := "x"
	dto := patchDTO{Name: &name, Price: &price, Tags: &tags, Skipped: &skipped}

	NormalizePtrDTO(&dto)
	got := UpdatesFromPtrDTO(&dto, map[string]string{"name": "title"})

	assert.Equal(t, "Ansiedad", got["title"])
	assert.Equal(t, 55.56, got["price"])
	assert.JSONEq(t, `["a","b"]`, string(got["tags"].(datatypes.JSON)))
	assert.NotContains(t, got, "untouched")
	assert.Len(t, got, 3)
}

func TestNormalizeDTO(t *testing.T) {
	dto := struct {
		Name  string
		Price float64
		Note  *string
	}{Name: " Ana ", Price: 10.006}
	NormalizeDTO(&dto)
	assert.Equal(t, "Ana", dto.Name)
	assert.Equal(t, 10.01, dto.Price)
	NormalizeDTO(nil)
}
