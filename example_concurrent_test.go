// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains examples with concurrent producer/consumer goroutines.
// These trigger false positives with Go's race detector because element
// values are published through atomix orderings the detector cannot see.
// The examples are correct; they're excluded from race testing.

package msq_test

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
)

// Example_workerPool demonstrates a worker pool on an epoch queue.
func Example_workerPool() {
	type Job struct {
		ID     int
		Input  int
		Result int
	}

	jobs := msq.NewEpoch[Job](nil)
	results := make([]int, 5)
	var wg sync.WaitGroup
	var completed atomix.Int32

	// Start 3 workers
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for completed.Load() < 5 {
				job, err := jobs.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				// Process job: square the input
				job.Result = job.Input * job.Input
				results[job.ID] = job.Result
				completed.Add(1)
			}
		}()
	}

	// Submit 5 jobs
	for i := range 5 {
		job := Job{ID: i, Input: i + 1}
		jobs.Enqueue(&job)
	}

	wg.Wait()
	jobs.Close()

	for i, r := range results {
		fmt.Printf("job %d: %d\n", i, r)
	}

	// Output:
	// job 0: 1
	// job 1: 4
	// job 2: 9
	// job 3: 16
	// job 4: 25
}

// Example_pipeline demonstrates a two-stage pipeline with the Immediate
// strategy, which is sound with one producer and one consumer.
func Example_pipeline() {
	stage := msq.NewImmediate[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 4; i++ {
			v := i * i
			stage.Enqueue(&v)
		}
	}()

	sum := 0
	backoff := iox.Backoff{}
	for received := 0; received < 4; {
		v, err := stage.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		sum += v
		received++
	}
	wg.Wait()
	stage.Close()

	fmt.Println("sum:", sum)

	// Output:
	// sum: 30
}
