package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/natsukage/task-tracker-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TaskRepositoryTestSuite defines the test suite for GormTaskRepository
type TaskRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo TaskRepository
	ctx  context.Context
}

// SetupTest runs before each test
func (suite *TaskRepositoryTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	// A single connection keeps every goroutine on the same in-memory
	// database and serializes writers the way sqlite expects.
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Task{},
	)
	suite.Require().NoError(err)

	suite.repo = NewTaskRepository(suite.db)
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *TaskRepositoryTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskRepositoryTestSuite) createTestUser(email string) *models.User {
	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hashedpassword",
	}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func (suite *TaskRepositoryTestSuite) appendTask(ownerID uint64, title string) *models.Task {
	task := &models.Task{
		Title:    title,
		Status:   models.TaskStatusPending,
		Priority: models.TaskPriorityMedium,
	}
	suite.Require().NoError(suite.repo.Append(suite.ctx, ownerID, task))
	return task
}

func (suite *TaskRepositoryTestSuite) ordersByOwner(ownerID uint64) map[uint64]int {
	var tasks []models.Task
	suite.Require().NoError(suite.db.Where("user_id = ?", ownerID).Find(&tasks).Error)
	orders := make(map[uint64]int, len(tasks))
	for _, t := range tasks {
		orders[t.ID] = t.Order
	}
	return orders
}

// TestAppend_Sequence verifies appended tasks receive orders 0..n-1
func (suite *TaskRepositoryTestSuite) TestAppend_Sequence() {
	user := suite.createTestUser("append@example.com")

	for i := 0; i < 5; i++ {
		task := suite.appendTask(user.ID, fmt.Sprintf("Task %d", i))
		assert.Equal(suite.T(), i, task.Order)
	}
}

// TestAppend_PerOwnerSequences verifies owners get independent sequences
func (suite *TaskRepositoryTestSuite) TestAppend_PerOwnerSequences() {
	alice := suite.createTestUser("alice@example.com")
	bob := suite.createTestUser("bob@example.com")

	a1 := suite.appendTask(alice.ID, "Alice 1")
	b1 := suite.appendTask(bob.ID, "Bob 1")
	a2 := suite.appendTask(alice.ID, "Alice 2")
	b2 := suite.appendTask(bob.ID, "Bob 2")

	assert.Equal(suite.T(), 0, a1.Order)
	assert.Equal(suite.T(), 1, a2.Order)
	assert.Equal(suite.T(), 0, b1.Order)
	assert.Equal(suite.T(), 1, b2.Order)
}

// TestAppend_Concurrent verifies N concurrent appends for one owner yield N
// distinct order values spanning 0..N-1
func (suite *TaskRepositoryTestSuite) TestAppend_Concurrent() {
	user := suite.createTestUser("concurrent@example.com")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := &models.Task{
				Title:    fmt.Sprintf("Concurrent %d", i),
				Status:   models.TaskStatusPending,
				Priority: models.TaskPriorityMedium,
			}
			errs[i] = suite.repo.Append(suite.ctx, user.ID, task)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(suite.T(), err, "append %d failed", i)
	}

	seen := make(map[int]bool)
	for _, order := range suite.ordersByOwner(user.ID) {
		assert.False(suite.T(), seen[order], "duplicate order %d", order)
		seen[order] = true
		assert.GreaterOrEqual(suite.T(), order, 0)
		assert.Less(suite.T(), order, n)
	}
	assert.Len(suite.T(), seen, n)
}

// TestAppend_CompletedStampsTimestamp verifies a task created directly in the
// completed status carries a completion time
func (suite *TaskRepositoryTestSuite) TestAppend_CompletedStampsTimestamp() {
	user := suite.createTestUser("stamp@example.com")

	task := &models.Task{
		Title:    "Already done",
		Status:   models.TaskStatusCompleted,
		Priority: models.TaskPriorityLow,
	}
	suite.Require().NoError(suite.repo.Append(suite.ctx, user.ID, task))

	assert.NotNil(suite.T(), task.CompletedAt)
}

// TestUpdate_CompletedTransitions verifies completed_at is stamped on entry,
// cleared on exit, and re-stamped fresh on re-entry
func (suite *TaskRepositoryTestSuite) TestUpdate_CompletedTransitions() {
	user := suite.createTestUser("transitions@example.com")
	task := suite.appendTask(user.ID, "Transitions")

	completed := models.TaskStatusCompleted
	pending := models.TaskStatusPending

	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Status: &completed}))
	suite.Require().NotNil(task.CompletedAt)
	first := *task.CompletedAt

	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Status: &pending}))
	assert.Nil(suite.T(), task.CompletedAt)

	time.Sleep(10 * time.Millisecond)

	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Status: &completed}))
	suite.Require().NotNil(task.CompletedAt)
	assert.True(suite.T(), task.CompletedAt.After(first), "round trip must stamp a fresh timestamp")
}

// TestUpdate_SameStatusKeepsTimestamp verifies re-saving a completed task
// without a transition does not move the stamp
func (suite *TaskRepositoryTestSuite) TestUpdate_SameStatusKeepsTimestamp() {
	user := suite.createTestUser("keep@example.com")
	task := suite.appendTask(user.ID, "Keep")

	completed := models.TaskStatusCompleted
	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Status: &completed}))
	first := *task.CompletedAt

	title := "Keep (renamed)"
	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Title: &title, Status: &completed}))

	assert.Equal(suite.T(), first, *task.CompletedAt)
	assert.Equal(suite.T(), "Keep (renamed)", task.Title)
}

// TestUpdate_DoesNotTouchOrder verifies the update path never moves the order key
func (suite *TaskRepositoryTestSuite) TestUpdate_DoesNotTouchOrder() {
	user := suite.createTestUser("order@example.com")
	suite.appendTask(user.ID, "First")
	task := suite.appendTask(user.ID, "Second")

	title := "Second (renamed)"
	suite.Require().NoError(suite.repo.Update(suite.ctx, task, TaskChanges{Title: &title}))

	reloaded, err := suite.repo.FindByID(suite.ctx, task.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, reloaded.Order)
}

// TestReorder_ReplacesMapping verifies a full reorder is applied atomically
func (suite *TaskRepositoryTestSuite) TestReorder_ReplacesMapping() {
	user := suite.createTestUser("reorder@example.com")
	a := suite.appendTask(user.ID, "A")
	b := suite.appendTask(user.ID, "B")
	c := suite.appendTask(user.ID, "C")

	err := suite.repo.Reorder(suite.ctx, user.ID, map[uint64]int{
		c.ID: 0,
		a.ID: 1,
		b.ID: 2,
	})
	suite.Require().NoError(err)

	tasks, err := suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 3)
	assert.Equal(suite.T(), "C", tasks[0].Title)
	assert.Equal(suite.T(), "A", tasks[1].Title)
	assert.Equal(suite.T(), "B", tasks[2].Title)
}

// TestReorder_ForeignTaskRejectsWholeMapping verifies no partial application
// when the mapping references another owner's task
func (suite *TaskRepositoryTestSuite) TestReorder_ForeignTaskRejectsWholeMapping() {
	alice := suite.createTestUser("alice2@example.com")
	bob := suite.createTestUser("bob2@example.com")
	a1 := suite.appendTask(alice.ID, "Alice 1")
	a2 := suite.appendTask(alice.ID, "Alice 2")
	foreign := suite.appendTask(bob.ID, "Bob 1")

	err := suite.repo.Reorder(suite.ctx, alice.ID, map[uint64]int{
		a1.ID:      1,
		a2.ID:      0,
		foreign.ID: 2,
	})
	assert.ErrorIs(suite.T(), err, ErrForeignTask)

	// Nothing moved for either owner.
	assert.Equal(suite.T(), map[uint64]int{a1.ID: 0, a2.ID: 1}, suite.ordersByOwner(alice.ID))
	assert.Equal(suite.T(), map[uint64]int{foreign.ID: 0}, suite.ordersByOwner(bob.ID))
}

// TestReorder_MissingTaskRejected verifies an unknown id counts as foreign
func (suite *TaskRepositoryTestSuite) TestReorder_MissingTaskRejected() {
	user := suite.createTestUser("missing@example.com")
	task := suite.appendTask(user.ID, "Only")

	err := suite.repo.Reorder(suite.ctx, user.ID, map[uint64]int{
		task.ID: 0,
		999999:  1,
	})
	assert.ErrorIs(suite.T(), err, ErrForeignTask)
}

// TestDelete_LeavesGaps verifies delete does not renumber remaining orders,
// and a later append still takes max+1
func (suite *TaskRepositoryTestSuite) TestDelete_LeavesGaps() {
	user := suite.createTestUser("gaps@example.com")
	a := suite.appendTask(user.ID, "A")
	b := suite.appendTask(user.ID, "B")
	c := suite.appendTask(user.ID, "C")

	suite.Require().NoError(suite.repo.Delete(suite.ctx, b.ID))

	orders := suite.ordersByOwner(user.ID)
	assert.Equal(suite.T(), map[uint64]int{a.ID: 0, c.ID: 2}, orders)

	next := suite.appendTask(user.ID, "D")
	assert.Equal(suite.T(), 3, next.Order)
}

// TestEndToEnd_ReorderThenDelete walks the create/reorder/delete scenario
func (suite *TaskRepositoryTestSuite) TestEndToEnd_ReorderThenDelete() {
	user := suite.createTestUser("scenario@example.com")
	a := suite.appendTask(user.ID, "A")
	b := suite.appendTask(user.ID, "B")
	c := suite.appendTask(user.ID, "C")

	assert.Equal(suite.T(), 0, a.Order)
	assert.Equal(suite.T(), 1, b.Order)
	assert.Equal(suite.T(), 2, c.Order)

	suite.Require().NoError(suite.repo.Reorder(suite.ctx, user.ID, map[uint64]int{
		c.ID: 0,
		a.ID: 1,
		b.ID: 2,
	}))

	suite.Require().NoError(suite.repo.Delete(suite.ctx, b.ID))

	tasks, err := suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)
	assert.Equal(suite.T(), "C", tasks[0].Title)
	assert.Equal(suite.T(), 0, tasks[0].Order)
	assert.Equal(suite.T(), "A", tasks[1].Title)
	assert.Equal(suite.T(), 1, tasks[1].Order)
}

// TestListByOwner_Filters verifies status/priority filters and the
// case-insensitive substring search over title and description
func (suite *TaskRepositoryTestSuite) TestListByOwner_Filters() {
	user := suite.createTestUser("filters@example.com")

	groceries := &models.Task{Title: "Buy Groceries", Description: "milk and eggs", Status: models.TaskStatusPending, Priority: models.TaskPriorityHigh}
	suite.Require().NoError(suite.repo.Append(suite.ctx, user.ID, groceries))
	laundry := &models.Task{Title: "Laundry", Description: "whites only", Status: models.TaskStatusCompleted, Priority: models.TaskPriorityLow}
	suite.Require().NoError(suite.repo.Append(suite.ctx, user.ID, laundry))

	pending := models.TaskStatusPending
	tasks, err := suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{Status: &pending})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), "Buy Groceries", tasks[0].Title)

	low := models.TaskPriorityLow
	tasks, err = suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{Priority: &low})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), "Laundry", tasks[0].Title)

	// Search matches the title case-insensitively...
	tasks, err = suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{Search: "GROCER"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), "Buy Groceries", tasks[0].Title)

	// ...and the description.
	tasks, err = suite.repo.ListByOwner(suite.ctx, user.ID, TaskFilter{Search: "Whites"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), "Laundry", tasks[0].Title)
}

// TestStatistics_PerOwnerIsolation verifies one user's counts ignore another's tasks
func (suite *TaskRepositoryTestSuite) TestStatistics_PerOwnerIsolation() {
	alice := suite.createTestUser("alice3@example.com")
	bob := suite.createTestUser("bob3@example.com")

	for i := 0; i < 3; i++ {
		suite.appendTask(alice.ID, fmt.Sprintf("Alice %d", i))
		suite.appendTask(bob.ID, fmt.Sprintf("Bob %d", i))
	}
	high := &models.Task{Title: "Urgent", Status: models.TaskStatusCompleted, Priority: models.TaskPriorityHigh}
	suite.Require().NoError(suite.repo.Append(suite.ctx, bob.ID, high))

	stats, err := suite.repo.Statistics(suite.ctx, alice.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(3), stats.Total)
	assert.Equal(suite.T(), int64(3), stats.ByStatus.Pending)
	assert.Equal(suite.T(), int64(0), stats.ByStatus.Completed)
	assert.Equal(suite.T(), int64(3), stats.ByPriority.Medium)

	global, err := suite.repo.GlobalStatistics(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(7), global.Total)
	assert.Equal(suite.T(), int64(1), global.ByStatus.Completed)
	assert.Equal(suite.T(), int64(1), global.ByPriority.High)
}

// TestDeleteCreatedBefore removes only tasks older than the cutoff
func (suite *TaskRepositoryTestSuite) TestDeleteCreatedBefore() {
	user := suite.createTestUser("retention@example.com")
	old := suite.appendTask(user.ID, "Old")
	fresh := suite.appendTask(user.ID, "Fresh")

	aged := time.Now().Add(-31 * 24 * time.Hour)
	suite.Require().NoError(suite.db.Model(&models.Task{}).
		Where("id = ?", old.ID).
		Update("created_at", aged).Error)

	deleted, err := suite.repo.DeleteCreatedBefore(suite.ctx, time.Now().Add(-30*24*time.Hour))
	suite.Require().NoError(err)
	suite.Require().Len(deleted, 1)
	assert.Equal(suite.T(), old.ID, deleted[0].ID)

	var remaining []models.Task
	suite.Require().NoError(suite.db.Find(&remaining).Error)
	suite.Require().Len(remaining, 1)
	assert.Equal(suite.T(), fresh.ID, remaining[0].ID)
}

func TestTaskRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TaskRepositoryTestSuite))
}
