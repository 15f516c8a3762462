package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/viper"
)

const (
	paramRetryInterval    = "retry-interval"     // constant + exponential
	paramRetryMaxInterval = "retry-max-interval" // exponential
	paramRetryMaxCount    = "retry-max-count"    // constant + exponential
	paramRetryMaxTime     = "retry-max-time"     // constant + exponential
	paramRetryPolicy      = "retry-policy"

	defaultRetryInterval    = 1 * time.Second  // constant + exponential
	defaultRetryMaxInterval = 30 * time.Second // exponential
	defaultRetryMaxCount    = 0                // constant + exponential
	defaultRetryMaxTime     = 0                // constant + exponential
	defaultRetryPolicy      = policyConstant

	policyConstant    = "constant"
	policyDisabled    = "disabled"
	policyExponential = "exponential"
)

type BackoffFactory func() backoff.BackOff

// NewBackoffFactory creates a new BackoffFactory based on a backoff.ExponentialBackoff
//
// backoff.ConstantBackoff has no notion of a maximum duration, therefore we use a backoff.ExponentialBackOff
// with a Multiplier of 1.0 and no randomization as a replacement.
//
// A maxElapsedTime or maxRetries of zero means the backoff never stops.
func NewBackoffFactory(multiplier, randomization float64, maxElapsedTime, interval, maxInterval time.Duration, maxRetries uint64) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.RandomizationFactor = randomization
		bo.MaxElapsedTime = maxElapsedTime
		bo.InitialInterval = interval
		if maxInterval < interval {
			maxInterval = interval
		}
		bo.MaxInterval = maxInterval
		bo.Reset() // Reset is required to make the InitialInterval change take effect.
		if maxRetries == 0 {
			return bo
		}
		return backoff.WithMaxRetries(bo, maxRetries)
	}
}

// GetRetryFromViper builds a BackoffFactory from the retry-* settings of v.  The defaults retry forever, once
// per second.
func GetRetryFromViper(v *viper.Viper) (BackoffFactory, error) {
	v.SetDefault(paramRetryInterval, defaultRetryInterval)       // constant + exponential
	v.SetDefault(paramRetryMaxInterval, defaultRetryMaxInterval) // exponential
	v.SetDefault(paramRetryMaxCount, defaultRetryMaxCount)       // constant + exponential
	v.SetDefault(paramRetryMaxTime, time.Duration(defaultRetryMaxTime))
	v.SetDefault(paramRetryPolicy, defaultRetryPolicy)

	retryInterval := v.GetDuration(paramRetryInterval)
	retryMaxInterval := v.GetDuration(paramRetryMaxInterval)
	retryMaxCount := v.GetInt64(paramRetryMaxCount)
	retryMaxTime := v.GetDuration(paramRetryMaxTime)
	retryPolicy := v.GetString(paramRetryPolicy)

	if retryInterval <= 0 {
		return nil, errors.New(paramRetryInterval + " must be positive")
	}

	if retryMaxInterval <= 0 {
		return nil, errors.New(paramRetryMaxInterval + " must be positive")
	}

	if retryMaxCount < 0 {
		return nil, errors.New(paramRetryMaxCount + " must be zero or positive")
	}

	if retryMaxTime < 0 {
		return nil, errors.New(paramRetryMaxTime + " must be zero or positive")
	}

	switch retryPolicy {
	case policyDisabled:
		return func() backoff.BackOff { return &backoff.StopBackOff{} }, nil
	case policyExponential:
		return NewBackoffFactory(backoff.DefaultMultiplier, backoff.DefaultRandomizationFactor, retryMaxTime, retryInterval, retryMaxInterval, uint64(retryMaxCount)), nil
	case policyConstant:
		return NewBackoffFactory(1.0, 0, retryMaxTime, retryInterval, retryInterval, uint64(retryMaxCount)), nil
	default:
		return nil, fmt.Errorf("%s (%s) not one of %s, %s, or %s", paramRetryPolicy, retryPolicy, policyDisabled, policyConstant, policyExponential)
	}
}
