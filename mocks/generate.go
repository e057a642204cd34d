package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-robots/internal/broker Broker
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/rxtech-lab/argo-robots/internal/notification Notifier
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/argo-robots/internal/store RobotRepository,OrderRepository,StateRepository
