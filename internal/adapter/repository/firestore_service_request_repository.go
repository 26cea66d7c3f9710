package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
)

const serviceRequestsCollection = "serviceRequests"

type firestoreServiceRequestRepository struct {
	client *firestore.Client
}

func NewFirestoreServiceRequestRepository(client *firestore.Client) repository.ServiceRequestRepository {
	return &firestoreServiceRequestRepository{
		client: client,
	}
}

func (r *firestoreServiceRequestRepository) Create(ctx context.Context, request *entity.ServiceRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}
	request.UpdatedAt = request.CreatedAt

	_, err := r.client.Collection(serviceRequestsCollection).Doc(request.ID).Create(ctx, request)
	if err != nil {
		return storeError(err, "Service request", "Failed to create service request")
	}
	return nil
}

func (r *firestoreServiceRequestRepository) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	doc, err := r.client.Collection(serviceRequestsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, storeError(err, "Service request", "Failed to get service request")
	}

	var request entity.ServiceRequest
	if err := doc.DataTo(&request); err != nil {
		return nil, errors.Internal("Failed to parse service request data", err)
	}
	return &request, nil
}

func (r *firestoreServiceRequestRepository) List(ctx context.Context, filter repository.ServiceRequestFilter) ([]*entity.ServiceRequest, int64, error) {
	query := r.client.Collection(serviceRequestsCollection).Query

	if filter.RequesterID != "" {
		query = query.Where("requesterId", "==", filter.RequesterID)
	}
	if filter.ProviderID != "" {
		query = query.WhereEntity(firestore.OrFilter{
			Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "targetProviderId", Operator: "==", Value: filter.ProviderID},
				firestore.PropertyFilter{Path: "acceptedProviderId", Operator: "==", Value: filter.ProviderID},
			},
		})
	}
	if filter.TypeOfWork != "" {
		query = query.Where("typeOfWork", "==", filter.TypeOfWork)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status", "in", statuses)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting service requests: %v", err)
		return nil, 0, storeError(err, "Service request", "Failed to count service requests")
	}
	total := int64(len(countDocs))

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var requests []*entity.ServiceRequest
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, storeError(err, "Service request", "Failed to iterate service requests")
		}

		var request entity.ServiceRequest
		if err := doc.DataTo(&request); err != nil {
			log.Printf("Error parsing service request %s: %v", doc.Ref.ID, err)
			continue
		}
		requests = append(requests, &request)
	}

	return requests, total, nil
}

func (r *firestoreServiceRequestRepository) UpdateIf(ctx context.Context, next *entity.ServiceRequest, expectedStatus entity.RequestStatus, expectedVersion int64) error {
	ref := r.client.Collection(serviceRequestsCollection).Doc(next.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var current entity.ServiceRequest
		if err := doc.DataTo(&current); err != nil {
			return errors.Internal("Failed to parse service request data", err)
		}
		if current.Status != expectedStatus || current.Version != expectedVersion {
			return errors.Conflict("Service request changed concurrently")
		}

		return tx.Set(ref, next)
	})
	if err != nil {
		return storeError(err, "Service request", "Failed to update service request")
	}
	return nil
}
