package results

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores one document per student in a collection.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository uses the students collection of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection("students")}
}

// EnsureIndexes creates the unique roll number index and the lookup index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "rollNo", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "rollNo", Value: 1}, {Key: "dob", Value: 1}}},
	})
	return err
}

// Upsert uses ReplaceOne so the stored document is swapped whole.
func (r *MongoRepository) Upsert(ctx context.Context, rec StudentRecord) (bool, error) {
	if rec.RollNo == "" {
		return false, ErrRollNoRequired
	}
	if rec.Subjects == nil {
		rec.Subjects = []SubjectResult{}
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"rollNo": rec.RollNo}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *MongoRepository) FindByRollNo(ctx context.Context, rollNo string) (StudentRecord, error) {
	return r.findOne(ctx, bson.M{"rollNo": rollNo})
}

func (r *MongoRepository) FindByRollNoAndDOB(ctx context.Context, rollNo, dob string) (StudentRecord, error) {
	return r.findOne(ctx, bson.M{"rollNo": rollNo, "dob": dob})
}

func (r *MongoRepository) Count(ctx context.Context) (int, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (StudentRecord, error) {
	var rec StudentRecord
	opts := options.FindOne().SetProjection(bson.M{"_id": 0})
	if err := r.col.FindOne(ctx, filter, opts).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return StudentRecord{}, ErrNotFound
		}
		return StudentRecord{}, err
	}
	return rec, nil
}
