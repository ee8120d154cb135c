package entity

type Bucket struct {
	Count  uint64 `json:"count"`
	Volume Amount `json:"volume"`
}

func (b *Bucket) Add(count uint64, volume Amount) {
	b.Count += count
	b.Volume += volume
}

type Statistics struct {
	Total              Bucket             `json:"total"`
	Fees               Amount             `json:"fees"`
	ByStatus           map[Status]*Bucket `json:"byStatus"`
	BySourceChain      map[string]*Bucket `json:"bySourceChain"`
	ByDestinationChain map[string]*Bucket `json:"byDestinationChain"`
}

func NewStatistics() *Statistics {
	return &Statistics{
		ByStatus:           make(map[Status]*Bucket, len(AllStatuses)),
		BySourceChain:      make(map[string]*Bucket, 4),
		ByDestinationChain: make(map[string]*Bucket, 4),
	}
}

// Record adds one aggregated group of transactions to every dimension.
func (s *Statistics) Record(status Status, sourceChain, destinationChain string, count uint64, volume, fees Amount) {
	s.Total.Add(count, volume)
	s.Fees += fees
	bucket(s.ByStatus, status).Add(count, volume)
	bucket(s.BySourceChain, sourceChain).Add(count, volume)
	bucket(s.ByDestinationChain, destinationChain).Add(count, volume)
}

// Count returns the number of transactions recorded with status.
func (s *Statistics) Count(status Status) uint64 {
	if b, ok := s.ByStatus[status]; ok {
		return b.Count
	}
	return 0
}

func bucket[K comparable](m map[K]*Bucket, key K) *Bucket {
	b, ok := m[key]
	if !ok {
		b = new(Bucket)
		m[key] = b
	}
	return b
}
