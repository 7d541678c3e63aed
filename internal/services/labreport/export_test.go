package labreport_test

import (
	"context"
	"testing"

	"labportal/internal/models"
	"labportal/internal/services/labreport"
	"labportal/internal/services/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportWritesOneRowPerValue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	v := f.submit(t,
		schema.Value{Parameter: f.h2o.ID, Value: "2.3"},
		schema.Value{Parameter: f.colour.ID, Value: "white"},
	)
	_, err := f.engine.Update(ctx, f.super, v.ID, labreport.Patch{Status: status(models.StatusApproved)})
	require.NoError(t, err)
	f.submit(t, schema.Value{Parameter: f.h2o.ID, Value: "4.0"})

	x, name, err := f.engine.Export(ctx, labreport.Filter{Status: models.StatusApproved, PageSize: 1})
	require.NoError(t, err)
	defer x.Close()
	assert.Regexp(t, `^lab_reports_\d{8}_\d{6}\.xlsx$`, name)

	rows, err := x.GetRows("Lab reports")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Report ID", rows[0][0])
	assert.Equal(t, []string{v.ID, "Urea", "B-01", "approved", "u1"}, rows[1][:5])
	assert.Equal(t, "u2", rows[1][6])
	assert.Equal(t, []string{"H2O %", "2.3", "%"}, rows[1][8:11])
	assert.Equal(t, []string{"Colour", "white"}, rows[2][8:10])
}
