// Package providertest содержит mock источника для тестов
package providertest

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/internal/provider"
)

// MockProvider для тестирования
type MockProvider struct {
	mock.Mock

	ProviderName string
	Secret       string
}

var _ provider.Provider = (*MockProvider)(nil)

// New создает mock с именем name
func New(name string) *MockProvider {
	return &MockProvider{ProviderName: name}
}

func (m *MockProvider) Name() string { return m.ProviderName }
func (m *MockProvider) Country() string { return "FR" }

func (m *MockProvider) NewStation() *models.Station { return &models.Station{} }
func (m *MockProvider) NewReading() *models.Reading { return &models.Reading{} }

func (m *MockProvider) FetchStations(ctx context.Context) ([]*models.Station, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Station), args.Error(1)
}

func (m *MockProvider) FetchReadings(ctx context.Context) (map[string]*models.Reading, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*models.Reading), args.Error(1)
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockProvider) FilterErrorMessage(msg string) string {
	if m.Secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, m.Secret, "xxx")
}

func (m *MockProvider) StationDetailURL(id string) string {
	return "https://example.test/station?id=" + id
}

func (m *MockProvider) StationHistoryURL(id string) string {
	return "https://example.test/history?id=" + id
}
