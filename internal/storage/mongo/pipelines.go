package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// distinctCount is the size of the set of values at path
func distinctCount(path string) bson.M {
	return bson.M{"$size": bson.M{"$setUnion": bson.A{path, bson.A{}}}}
}

// playerLeaderboardPipeline runs on the players collection. Each player is
// joined to the shrubs it owns and then to every vote on those shrubs.
// $documentNumber assigns row-number ranks, so ties never share a rank.
func playerLeaderboardPipeline(limit int) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         shrubsCollection,
			"localField":   "_id",
			"foreignField": "shrubberId",
			"as":           "owned",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         votesCollection,
			"localField":   "owned._id",
			"foreignField": "shrubId",
			"as":           "ownedVotes",
		}}},
		{{Key: "$project", Value: bson.M{
			"name":             1,
			"shrubCount":       bson.M{"$size": "$owned"},
			"totalPoints":      bson.M{"$sum": "$ownedVotes.points"},
			"uniqueVoterCount": distinctCount("$ownedVotes.voterId"),
		}}},
		{{Key: "$setWindowFields", Value: bson.M{
			"sortBy": bson.D{{Key: "totalPoints", Value: -1}, {Key: "name", Value: 1}, {Key: "_id", Value: 1}},
			"output": bson.M{"rank": bson.M{"$documentNumber": bson.M{}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "rank", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return pipeline
}

// shrubLeaderboardPipeline runs on the shrubs collection. Shrubs whose owner
// no longer resolves drop out at $unwind. $rank sorts by points alone, so
// tied totals share a rank and the next total leaves a gap.
func shrubLeaderboardPipeline(limit int) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         playersCollection,
			"localField":   "shrubberId",
			"foreignField": "_id",
			"as":           "owner",
		}}},
		{{Key: "$unwind", Value: "$owner"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         votesCollection,
			"localField":   "_id",
			"foreignField": "shrubId",
			"as":           "voteDocs",
		}}},
		{{Key: "$project", Value: bson.M{
			"originalWord":     1,
			"transformedWord":  1,
			"description":      1,
			"createdAt":        1,
			"ownerName":        "$owner.name",
			"totalPoints":      bson.M{"$sum": "$voteDocs.points"},
			"uniqueVoterCount": distinctCount("$voteDocs.voterId"),
		}}},
		{{Key: "$setWindowFields", Value: bson.M{
			"sortBy": bson.D{{Key: "totalPoints", Value: -1}},
			"output": bson.M{"rank": bson.M{"$rank": bson.M{}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalPoints", Value: -1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return pipeline
}
