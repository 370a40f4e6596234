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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/config"
	"github.com/taskloop/taskloop/executor"
	"github.com/taskloop/taskloop/handler"
	"github.com/taskloop/taskloop/internal/concurrent"
	"github.com/taskloop/taskloop/looper"
	"github.com/taskloop/taskloop/metrics"
	"github.com/taskloop/taskloop/taskgroup"
)

// Server wires a pool-backed TaskSpawner (executor.Async: exec runs on the
// worker pool, post-execution callback runs through a Handler/Looper pair)
// to a small gin HTTP surface.
type Server struct {
	cfg *config.Tunables

	pool       concurrent.Pool
	postHandle *handler.Handler
	loop       *looper.Looper
	spawner    *taskgroup.TaskSpawner

	api *TaskAPI

	httpSrv *http.Server
	log     logger.Logger
}

// NewServer builds a Server from cfg without starting anything.
func NewServer(cfg *config.Tunables) *Server {
	postHandle := handler.New("taskloopd-post", handler.WithRetryTimeout(time.Duration(cfg.RetryTimeout)))
	loop := looper.New(postHandle, func(err error) {
		if err != nil {
			logger.GetLogger("taskloopd", "Looper").Warn("post-execution loop iteration failed", logger.Error(err))
		}
	})
	loop.SetTimeout(time.Duration(cfg.DefaultTimeout))

	pool := concurrent.NewPool("taskloopd", cfg.Pool.Concurrency,
		time.Duration(cfg.Pool.IdleTimeout), metrics.NewPoolStatistics("taskloopd"))

	spawner := taskgroup.NewTaskSpawner()
	binding := executor.Async(pool, postHandle)
	spawner.SetOnExecute(binding.OnExecute)
	spawner.SetOnPostExecute(binding.OnPostExecute)

	return &Server{
		cfg:        cfg,
		pool:       pool,
		postHandle: postHandle,
		loop:       loop,
		spawner:    spawner,
		api:        NewTaskAPI(spawner),
		log:        logger.GetLogger("taskloopd", "Server"),
	}
}

func (s *Server) engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.api.Register(r.Group("/"))
	return r
}

// Run starts the post-execution loop, the HTTP server, and blocks until
// SIGINT/SIGTERM, then shuts everything down.
func (s *Server) Run() error {
	looper.StartOnThread(s.loop)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:           s.engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-sigCh:
		s.log.Info("shutdown signal received")
		s.shutdown()
		return nil
	}
}

func (s *Server) shutdown() {
	s.loop.Stop()
	s.spawner.Close()
	s.pool.Stop()
	s.postHandle.Close()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn("http server shutdown error", logger.Error(err))
		}
	}
}
