package db

type Repository struct {
	CourierRepository  *CourierRepository
	DeliveryRepository *DeliveryRepository
	LocationRepository *LocationRepository
}

func New(db *DataBase) *Repository {
	return &Repository{
		CourierRepository:  NewCourierRepository(db),
		DeliveryRepository: NewDeliveryRepository(db),
		LocationRepository: NewLocationRepository(db),
	}
}
