// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/task"
	"github.com/taskloop/taskloop/taskgroup"
)

// TasksPath is the root path for task submission and inspection.
const TasksPath = "tasks"

// TaskAPI serves the task submission/inspection/metrics routes, tracking
// every Task it spawns by a generated id so a later GET can look it up.
type TaskAPI struct {
	spawner *taskgroup.TaskSpawner

	mu    sync.Mutex
	tasks map[string]*task.Task

	log logger.Logger
}

// NewTaskAPI creates a TaskAPI submitting tasks onto spawner.
func NewTaskAPI(spawner *taskgroup.TaskSpawner) *TaskAPI {
	return &TaskAPI{
		spawner: spawner,
		tasks:   make(map[string]*task.Task),
		log:     logger.GetLogger("taskloopd", "TaskAPI"),
	}
}

// Register adds the task submission/inspection/metrics routes.
func (a *TaskAPI) Register(route gin.IRoutes) {
	route.POST(TasksPath, a.submit)
	route.GET(TasksPath+"/:id", a.get)
	route.GET("metrics", gin.WrapH(promhttp.Handler()))
}

// demoPayload is the one fixed demo job a submission runs: sleep briefly,
// then report through the post-execution phase.
func demoPayload() task.ExecFunc {
	return func(*task.Task) task.PostBody {
		time.Sleep(10 * time.Millisecond)
		return func() {}
	}
}

func (a *TaskAPI) submit(c *gin.Context) {
	t, err := a.spawner.Spawn(demoPayload(), nil)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	id := uuid.New().String()

	a.mu.Lock()
	a.tasks[id] = t
	a.mu.Unlock()

	t.Execute()
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (a *TaskAPI) get(c *gin.Context) {
	id := c.Param("id")

	a.mu.Lock()
	t, ok := a.tasks[id]
	a.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task id"})
		return
	}

	errs := t.Errors()
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"state":  t.State().String(),
		"errors": msgs,
	})
}
