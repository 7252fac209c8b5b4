package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client/clienttest"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metadata/metadatatest"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/records"
	"github.com/alfredjeanlab/vitro/internal/view"
)

func TestSetData(t *testing.T) {
	s := reactive.NewStore()
	bar := view.NewBar(s, "companies")
	reactive.Set(s, SelectedRowIDs, []string{"c1"})

	recs := []model.Record{
		{"id": "c1", "name": "Acme"},
		{"id": "c2", "name": "Globex"},
	}
	SetData(s, bar, recs)

	assert.Equal(t, []string{"c1", "c2"}, reactive.Get(s, RowIDs))
	assert.Equal(t, recs[1], reactive.Get(s, view.EntityFields.Of("c2")))
	assert.Nil(t, reactive.Get(s, SelectedRowIDs), "selection reset")
	assert.Equal(t, 2, reactive.Get(s, NumberOfRows))
	assert.Equal(t, 2, bar.EntityCount())
	assert.False(t, reactive.Get(s, IsFetching))
}

func TestSetData_GatesUnchangedRecords(t *testing.T) {
	s := reactive.NewStore()
	recs := []model.Record{{"id": "c1", "name": "Acme"}, {"id": "c2", "name": "Globex"}}
	SetData(s, nil, recs)

	v1 := s.Version(view.EntityFields.Of("c1").Key)
	v2 := s.Version(view.EntityFields.Of("c2").Key)
	rows := s.Version(RowIDs.Key)

	SetData(s, nil, []model.Record{{"id": "c1", "name": "Acme"}, {"id": "c2", "name": "Globex Corp"}})

	assert.Equal(t, v1, s.Version(view.EntityFields.Of("c1").Key), "unchanged record not rewritten")
	assert.NotEqual(t, v2, s.Version(view.EntityFields.Of("c2").Key))
	assert.Equal(t, rows, s.Version(RowIDs.Key), "same row ids not rewritten")
}

func newLoader(t *testing.T) (*Loader, *clienttest.Fake, *reactive.Store, *view.Bar) {
	t.Helper()
	meta := metadatatest.Registry(t)
	c := cache.New(nil)
	fake := clienttest.New(metadatatest.Objects())
	fake.Seed("company",
		model.Record{"id": "c1", "name": "Acme", "employees": 10.0},
		model.Record{"id": "c2", "name": "Globex", "employees": 50.0},
		model.Record{"id": "c3", "name": "Initech", "employees": 30.0},
	)
	svc := records.New(fake, meta, c, effect.NewRegistry(meta, c, nil))
	s := reactive.NewStore()
	bar := view.NewBar(s, "companies")
	return NewLoader(svc, s, bar, nil), fake, s, bar
}

func TestLoader_Load(t *testing.T) {
	l, _, s, bar := newLoader(t)
	rows, err := l.Load(context.Background(), "companies", model.View{
		Sorts:  []model.ViewSort{{FieldMetadataID: "company-employees", Direction: model.SortDesc}},
		Fields: []model.ViewField{{FieldMetadataID: "company-name", IsVisible: true, Size: 200}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"c2", "c3", "c1"}, reactive.Get(s, RowIDs))
	assert.Equal(t, 3, bar.EntityCount())
	assert.Equal(t, model.ViewTable, bar.Current().Type)
	require.Len(t, reactive.Get(s, Columns), 1)
}

func TestLoader_LoadFiltered(t *testing.T) {
	l, _, s, _ := newLoader(t)
	_, err := l.Load(context.Background(), "companies", model.View{
		Filters: []model.ViewFilter{{FieldMetadataID: "company-employees", Operand: model.OperandGreaterThan, Value: "20"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, reactive.Get(s, RowIDs))
	assert.Equal(t, 2, reactive.Get(s, NumberOfRows))
}

func TestLoader_Errors(t *testing.T) {
	l, fake, s, _ := newLoader(t)

	_, err := l.Load(context.Background(), "widgets", model.View{})
	assert.ErrorIs(t, err, metadata.ErrUnknownObject)

	fake.FindErr = errors.New("offline")
	_, err = l.Load(context.Background(), "companies", model.View{})
	require.Error(t, err)
	assert.False(t, reactive.Get(s, IsFetching))
	assert.Nil(t, reactive.Get(s, RowIDs))
}
