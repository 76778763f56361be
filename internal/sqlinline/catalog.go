package sqlinline

const QInsertBaseProduct = `--sql b39b1cb1-1b63-4f82-afc5-f8b73fffa8fb
insert into base_products (name, description, image_ref, image_mime, parts, constraints_text, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::text, now(), now())
returning id, created_at, updated_at;
`

const QSelectBaseProductByID = `--sql e800a758-9a65-4792-8b10-c85749d6e60c
select id, name, description, image_ref, image_mime, parts, constraints_text, created_at, updated_at
from base_products
where id = $1::bigint;
`

const QListBaseProducts = `--sql 99703dc0-c023-4b14-b154-10259d601dbd
select id, name, description, image_ref, image_mime, parts, constraints_text, created_at, updated_at
from base_products
order by created_at desc, id desc;
`

const QUpdateBaseProduct = `--sql 4f90165c-bf43-4b71-b6cf-b64c55590b9b
update base_products
set name = $2::text,
    description = $3::text,
    image_ref = $4::text,
    image_mime = $5::text,
    parts = $6::text,
    constraints_text = $7::text,
    updated_at = now()
where id = $1::bigint
returning updated_at;
`

const QDeleteBaseProduct = `--sql ee6bd22c-8cf5-4751-be12-4f2f6738dfde
delete from base_products
where id = $1::bigint;
`

const QInsertReference = `--sql c12ab99f-a4f9-4bba-ad82-f321f9a10ad0
insert into product_references (base_product_id, description, image_ref, image_mime, created_at)
values ($1::bigint, $2::text, $3::text, $4::text, now())
returning id, created_at;
`

const QListReferencesByProduct = `--sql 080e8351-f91d-4e87-b192-0b372c52bd02
select id, base_product_id, description, image_ref, image_mime, created_at
from product_references
where base_product_id = $1::bigint
order by id asc;
`

const QDeleteReference = `--sql e1bbc38a-0eaa-4b64-865f-c3217f98888e
delete from product_references
where id = $1::bigint
returning image_ref, image_mime;
`

const QInsertPromptTemplate = `--sql 5bf99ed2-56a2-4648-a780-c21fd66d8daa
insert into prompt_templates (name, prompt, is_default, created_at)
values ($1::text, $2::text, $3::boolean, now())
returning id, created_at;
`

const QSelectPromptTemplatesByIDs = `--sql 26d6ee5a-f78a-4da9-9b45-78a86dccdcb9
select id, name, prompt, is_default, created_at
from prompt_templates
where id = any($1::bigint[]);
`

const QListPromptTemplates = `--sql 4cc48a0e-5d94-4c35-8477-56d1cc65f937
select id, name, prompt, is_default, created_at
from prompt_templates
order by id asc;
`

const QUpdatePromptTemplate = `--sql 5b061851-287b-4d0c-927f-ba83493fb676
update prompt_templates
set name = $2::text, prompt = $3::text
where id = $1::bigint;
`

const QDeletePromptTemplate = `--sql 70eaaaa4-87fa-4503-b344-fb45ca1ae01e
delete from prompt_templates
where id = $1::bigint;
`

const QCountPromptTemplates = `--sql 446edbf0-f832-44dd-b9ab-cd0392b47c77
select count(*)
from prompt_templates;
`
