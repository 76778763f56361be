package sqlinline

const jobColumns = `id::text, kind, base_product_id, parent_id::text, inputs, status, artifact_ref, artifact_mime,
    error_message, simulation_status, simulation_refs, simulation_error, created_at, updated_at`

const QInsertJob = `--sql caab84e2-290e-4aa9-b360-06a13b8a8894
insert into mockup_jobs (id, kind, base_product_id, parent_id, inputs, status, simulation_status, created_at, updated_at)
values ($1::uuid, $2::text, $3::bigint, nullif($4::text, '')::uuid, $5::jsonb, $6::text, $7::text, $8, $8);
`

const QSelectJobByID = `--sql 57e50457-e96e-4b3d-9ba6-04bd5f6e3b4f
select ` + jobColumns + `
from mockup_jobs
where id = $1::uuid;
`

const QListJobs = `--sql a2e41a55-5ba0-42f0-914f-94c5b1fd87aa
select ` + jobColumns + `
from mockup_jobs
where ($1::bigint = 0 or base_product_id = $1::bigint)
order by created_at desc
limit $2::int;
`

// QCompleteJob and QFailJob only match pending rows so a job is terminated once.
const QCompleteJob = `--sql f76e061b-1cb9-4557-a704-3e569615a1d7
update mockup_jobs
set status = 'completed', artifact_ref = $2::text, artifact_mime = $3::text, updated_at = now()
where id = $1::uuid and status = 'pending';
`

const QFailJob = `--sql b0546e5c-5c9e-4c79-a827-4d9d6aac9eea
update mockup_jobs
set status = 'failed', error_message = $2::text, updated_at = now()
where id = $1::uuid and status = 'pending';
`

const QBeginSimulation = `--sql bbeded53-5409-4524-ac3e-ab4ec5fac477
update mockup_jobs
set simulation_status = 'generating', simulation_refs = '{}', simulation_error = '', updated_at = now()
where id = $1::uuid and status = 'completed' and simulation_status <> 'generating';
`

const QCompleteSimulation = `--sql 32903a30-5fa4-43ce-8985-b581ae501ce1
update mockup_jobs
set simulation_status = 'completed', simulation_refs = $2::text[], updated_at = now()
where id = $1::uuid and simulation_status = 'generating';
`

const QFailSimulation = `--sql 4708bb35-682f-40b7-9a77-c35ea216b8e3
update mockup_jobs
set simulation_status = 'failed', simulation_refs = '{}', simulation_error = $2::text, updated_at = now()
where id = $1::uuid and simulation_status = 'generating';
`

const QFailPendingJobs = `--sql c00edf45-a36b-4369-b5ff-e6e76fd2ec70
update mockup_jobs
set status = 'failed', error_message = $1::text, updated_at = now()
where status = 'pending';
`

const QFailRunningSimulations = `--sql 8f16b4c8-3cf3-48b1-b2b3-238f4ac0eb68
update mockup_jobs
set simulation_status = 'failed', simulation_refs = '{}', simulation_error = $1::text, updated_at = now()
where simulation_status = 'generating';
`

const QDeleteJob = `--sql acd63718-d3e9-44d8-9a12-dcb3ea4151b9
delete from mockup_jobs
where id = $1::uuid;
`
