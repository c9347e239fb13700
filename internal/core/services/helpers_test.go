package services_test

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/mocks"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastCollectorConfig keeps retries short enough for unit tests.
func fastCollectorConfig() services.CollectorConfig {
	return services.CollectorConfig{
		Retry: services.RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		FetchTimeout: time.Second,
	}
}

func tableNamed(name string) interface{} {
	return mock.MatchedBy(func(t domain.SourceTable) bool { return t.Name == name })
}

// stubSources answers FetchRows for every registered table. Tables missing
// from rows return no rows; tables in failing return their error.
func stubSources(m *mocks.MockChannelSource, rows map[string][]domain.RawRow, failing map[string]error) {
	for _, table := range domain.SourceTables {
		if err, ok := failing[table.Name]; ok {
			m.On("FetchRows", mock.Anything, tableNamed(table.Name), mock.Anything).Return(nil, err)
			continue
		}
		r := rows[table.Name]
		if r == nil {
			r = []domain.RawRow{}
		}
		m.On("FetchRows", mock.Anything, tableNamed(table.Name), mock.Anything).Return(r, nil)
	}
}

type fixture struct {
	leadA  domain.TeamLead
	leadB  domain.TeamLead
	alice  domain.Agent
	bob    domain.Agent
	carol  domain.Agent
	roster *domain.Roster
}

func newFixture() fixture {
	f := fixture{
		leadA: domain.TeamLead{ID: uuid.New(), Name: "Lead A", AssignedAgentsCount: 2},
		leadB: domain.TeamLead{ID: uuid.New(), Name: "Lead B", AssignedAgentsCount: 1},
	}
	f.alice = domain.Agent{ID: uuid.New(), Name: "Alice", TeamLeadID: f.leadA.ID}
	f.bob = domain.Agent{ID: uuid.New(), Name: "Bob", TeamLeadID: f.leadA.ID}
	f.carol = domain.Agent{ID: uuid.New(), Name: "Carol", TeamLeadID: f.leadB.ID}
	f.roster = domain.NewRoster(f.agents(), f.leads())
	return f
}

func (f fixture) agents() []domain.Agent {
	return []domain.Agent{f.alice, f.bob, f.carol}
}

func (f fixture) leads() []domain.TeamLead {
	return []domain.TeamLead{f.leadA, f.leadB}
}

func ptr[T any](v T) *T {
	return &v
}
