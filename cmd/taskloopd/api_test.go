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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/taskgroup"
)

func newTestEngine(t *testing.T) (*gin.Engine, *TaskAPI) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	spawner := taskgroup.NewTaskSpawner()
	t.Cleanup(spawner.Close)

	api := NewTaskAPI(spawner)
	r := gin.New()
	api.Register(r.Group("/"))
	return r, api
}

func TestTaskAPI_SubmitThenGetReportsState(t *testing.T) {
	r, _ := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/"+TasksPath, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var submitResp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitResp))
	require.NotEmpty(t, submitResp.ID)

	assert.Eventually(t, func() bool {
		getReq := httptest.NewRequest(http.MethodGet, "/"+TasksPath+"/"+submitResp.ID, nil)
		getRR := httptest.NewRecorder()
		r.ServeHTTP(getRR, getReq)
		if getRR.Code != http.StatusOK {
			return false
		}
		var getResp struct {
			State string `json:"state"`
		}
		_ = json.Unmarshal(getRR.Body.Bytes(), &getResp)
		return strings.Contains(getResp.State, "DONE")
	}, time.Second, time.Millisecond)
}

func TestTaskAPI_GetUnknownIDReturnsNotFound(t *testing.T) {
	r, _ := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/"+TasksPath+"/does-not-exist", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTaskAPI_MetricsEndpointServesPrometheusFormat(t *testing.T) {
	r, _ := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
}
