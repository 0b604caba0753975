package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"liquid-tasks/internal/models"
	tasksync "liquid-tasks/internal/sync"
)

type TaskHandler struct {
	coordinator *tasksync.Coordinator
}

func NewTaskHandler(coordinator *tasksync.Coordinator) *TaskHandler {
	return &TaskHandler{coordinator: coordinator}
}

// GetTasks lists tasks, optionally narrowed by ?search= and ?category=.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	search := c.Query("search")
	category := c.Query("category")

	var tasks []models.Task
	if search == "" && category == "" {
		tasks = h.coordinator.Tasks()
	} else {
		tasks = h.coordinator.Filter(search, category)
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input models.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.coordinator.Create(input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var input models.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.coordinator.Edit(c.Param("id"), input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	task, ok := h.coordinator.Toggle(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if !h.coordinator.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *TaskHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.Stats())
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasksync.ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	}
}
