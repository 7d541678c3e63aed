//go:build integration

package labreport_test

import (
	"context"
	"sync"
	"testing"

	"labportal/internal/auth"
	"labportal/internal/models"
	"labportal/internal/services/labreport"
	"labportal/internal/services/schema"
	"labportal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("labportal"),
		tcpostgres.WithUsername("lab"),
		tcpostgres.WithPassword("lab"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	require.NoError(t, auth.EnsureRoles(ctx, db))
	return db
}

func TestPostgresWorkflow(t *testing.T) {
	db := openPostgres(t)
	ctx := context.Background()
	lg := testutil.Logger()
	engine := labreport.NewEngine(db, schema.NewStore(db, lg), lg)

	plant := testutil.SeedPlant(t, db, "Plant 1")
	urea := testutil.SeedProduct(t, db, plant.ID, "P-100", "Urea")
	h2o := testutil.SeedParameter(t, db, models.ProductParameter{
		ProductID: urea.ID, Name: "H2O %", Type: models.ParameterNumber,
		Required: true, MinValue: testutil.Ptr(0.0), MaxValue: testutil.Ptr(5.0),
	})
	colour := testutil.SeedParameter(t, db, models.ProductParameter{
		ProductID: urea.ID, Name: "Colour", Type: models.ParameterDropdown,
		Options: models.StringList{"white", "off-white"},
	})
	assistant := testutil.ActorOf(testutil.SeedUser(t, db, "u1", auth.RoleLabAssistant))
	supers := []auth.Actor{
		testutil.ActorOf(testutil.SeedUser(t, db, "u2", auth.RoleSupervisor)),
		testutil.ActorOf(testutil.SeedUser(t, db, "u3", auth.RoleSupervisor)),
	}

	v, err := engine.Create(ctx, assistant, labreport.CreateRequest{
		Product: urea.ID, BatchNo: "B-01",
		ParameterValues: []schema.Value{{Parameter: h2o.ID, Value: "2.3"}, {Parameter: colour.ID, Value: "white"}},
	})
	require.NoError(t, err)
	require.Len(t, v.ParameterValues, 2)

	stored, err := schema.NewStore(db, lg).Get(ctx, colour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"white", "off-white"}, stored.Options)

	decisions := []models.ReportStatus{models.StatusApproved, models.StatusRejected}
	var wg sync.WaitGroup
	errs := make([]error, len(supers))
	for i := range supers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := decisions[i]
			_, errs[i] = engine.Update(ctx, supers[i], v.ID, labreport.Patch{Status: &s})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := engine.Get(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ApprovedBy)
	winner := -1
	for i, s := range supers {
		if s.ID == *final.ApprovedBy {
			winner = i
		}
	}
	require.NotEqual(t, -1, winner)
	assert.Equal(t, decisions[winner], final.Status)

	history, err := engine.History(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	manager := testutil.ActorOf(testutil.SeedUser(t, db, "boss", auth.RoleManager))
	require.NoError(t, engine.Delete(ctx, manager, v.ID))
	var n int64
	require.NoError(t, db.Model(&models.LabReportParameter{}).Where("lab_report_id = ?", v.ID).Count(&n).Error)
	assert.Zero(t, n)
}
