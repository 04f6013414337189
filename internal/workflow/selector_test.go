package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityworks/addressing-service/internal/domain"
)

func staffMember(id string, available bool) domain.Staff {
	return domain.Staff{
		ID:                       id,
		Name:                     "Staff " + id,
		Department:               domain.DepartmentGIS,
		Role:                     domain.StaffRoleGISStaff,
		IsAvailableForAssignment: available,
	}
}

func pinnedSelector(index int) *Selector {
	return NewSelectorWithRand(func(n int) int { return index % n })
}

func TestSelectorExcludesPreviousAssignee(t *testing.T) {
	pool := []domain.Staff{
		staffMember("a", true),
		staffMember("b", true),
		staffMember("c", true),
	}

	// Whatever the random index, "b" never comes back while others exist.
	for index := 0; index < 5; index++ {
		selected := pinnedSelector(index).Select(pool, "b")
		require.NotNil(t, selected)
		assert.NotEqual(t, "b", selected.ID)
	}
}

func TestSelectorFallsBackToExcludedWhenAlone(t *testing.T) {
	pool := []domain.Staff{staffMember("only", true)}

	selected := pinnedSelector(0).Select(pool, "only")
	require.NotNil(t, selected)
	assert.Equal(t, "only", selected.ID)
}

func TestSelectorSkipsUnavailableStaff(t *testing.T) {
	pool := []domain.Staff{
		staffMember("a", false),
		staffMember("b", true),
		staffMember("c", false),
	}

	for index := 0; index < 3; index++ {
		selected := pinnedSelector(index).Select(pool, "")
		require.NotNil(t, selected)
		assert.Equal(t, "b", selected.ID)
	}
}

func TestSelectorEmptyPool(t *testing.T) {
	assert.Nil(t, pinnedSelector(0).Select(nil, ""))
	assert.Nil(t, pinnedSelector(0).Select([]domain.Staff{}, "x"))

	// A pool of only-unavailable staff behaves like an empty pool.
	pool := []domain.Staff{staffMember("a", false)}
	assert.Nil(t, pinnedSelector(0).Select(pool, ""))
}

func TestSelectorUniformChoice(t *testing.T) {
	pool := []domain.Staff{
		staffMember("a", true),
		staffMember("b", true),
		staffMember("c", true),
	}

	seen := map[string]bool{}
	for index := 0; index < 3; index++ {
		selected := pinnedSelector(index).Select(pool, "")
		require.NotNil(t, selected)
		seen[selected.ID] = true
	}
	assert.Len(t, seen, 3)
}
