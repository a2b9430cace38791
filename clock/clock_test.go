/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetFreq(t *testing.T) {
	tx := &unix.Timex{}
	setFreq(tx, 1000.0)
	require.Equal(t, int64(65536), tx.Freq)

	tx = &unix.Timex{}
	setFreq(tx, -512000.0)
	require.Equal(t, int64(-33554432), tx.Freq)
}

func TestStepTxPositive(t *testing.T) {
	tx := &unix.Timex{}
	stepTx(tx, 1500*time.Millisecond)
	require.Equal(t, AdjSetOffset|AdjNano, tx.Modes)
	require.Equal(t, int64(1), tx.Time.Sec)
	require.Equal(t, int64(500000000), tx.Time.Usec)
}

func TestStepTxNegative(t *testing.T) {
	// -1.5s must end up as -2s + 0.5s, never with a negative fraction
	tx := &unix.Timex{}
	stepTx(tx, -1500*time.Millisecond)
	require.Equal(t, int64(-2), tx.Time.Sec)
	require.Equal(t, int64(500000000), tx.Time.Usec)
}

func TestStepTxSubSecond(t *testing.T) {
	tx := &unix.Timex{}
	stepTx(tx, -300*time.Millisecond)
	require.Equal(t, int64(-1), tx.Time.Sec)
	require.Equal(t, int64(700000000), tx.Time.Usec)

	tx = &unix.Timex{}
	stepTx(tx, 300*time.Millisecond)
	require.Equal(t, int64(0), tx.Time.Sec)
	require.Equal(t, int64(300000000), tx.Time.Usec)
}

func TestStepTxFractionNeverNegative(t *testing.T) {
	steps := []time.Duration{
		-1, -999999999, -time.Second, -1500 * time.Millisecond,
		-2 * time.Second, 1, time.Second, 2500 * time.Millisecond, 0,
	}
	for _, step := range steps {
		tx := &unix.Timex{}
		stepTx(tx, step)
		require.GreaterOrEqual(t, tx.Time.Usec, int64(0), "step %v", step)
		require.Equal(t, int64(step), tx.Time.Sec*int64(time.Second)+tx.Time.Usec, "step %v", step)
	}
}
