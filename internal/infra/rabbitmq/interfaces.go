package rabbitmq

import "github.com/izeeshan007/eternal-essence-backend/internal/infra"

var _ infra.EventPublisher = (*Publisher)(nil)
